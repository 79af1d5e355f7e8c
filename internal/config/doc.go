// Package config loads and watches the exporter configuration file.
//
// Top-level types:
//   - Config{RCON, Exporter, Log} is the full tree parsed from YAML
//   - RCONConfig holds host, port, password_env/password, timeout and the
//     reconnect throttle; Addr() joins host and port, Secret() resolves the
//     password from password_env before falling back to password
//   - ExporterConfig holds listen_port, metrics_path (anything but / and
//     /healthz), scrape_interval and the enabled queries
//   - LogConfig holds level (debug|info|warn|error) and format (json|text)
//
// Load(path) applies defaults (localhost:25575, 5s timeout, port 9150,
// on-demand scraping, queries list and tps), parses the YAML on top of them
// and validates the result. Load("") returns the defaults, so the file is
// optional.
//
// Watch(ctx, path, onChange) uses fsnotify on the file's parent directory, so
// atomic-save editors (vim, VS Code) that rename a new file into place keep
// being tracked. Events are debounced and an empty file is ignored, so a
// half-written file is never applied; onChange receives the parsed Config.
package config
