// Package config loads collabedit settings.
//
// Settings come from three sources, later ones winning:
//
//  1. Built-in defaults (Default)
//  2. A TOML or YAML file, chosen by extension
//  3. Environment variables prefixed with COLLABEDIT_
//
// Sources are merged as maps and decoded into a Config, which is then
// validated. A Watcher reloads the file when it changes on disk.
package config
