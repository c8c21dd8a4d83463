// Package confloader loads server configuration from layered sources
// using koanf: defaults, then a YAML file, then environment variables,
// each overriding the last. A watcher built on fsnotify can reload the
// file on change.
package confloader
