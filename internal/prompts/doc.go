// Package prompts manages named system prompts.
//
// Defaults are embedded in the binary as JSON files of the form
// {"name": ..., "prompt": ...}; the registry can replace any prompt at
// runtime via Reload, which is how the file-watcher collaborator hot-reloads
// prompt text without the core touching the filesystem.
package prompts
