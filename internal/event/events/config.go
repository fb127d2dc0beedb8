package events

import "github.com/dshills/collabedit/internal/event"

// TopicConfigReloaded is published after the configuration file changed and
// was loaded again.
const TopicConfigReloaded event.Topic = "config.reloaded"

// ConfigReloaded names the reloaded file and the error, if loading failed.
type ConfigReloaded struct {
	Path string
	Err  error
}
