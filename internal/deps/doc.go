// Package deps checks that the interpreter, media tools, and stage scripts
// are installed before a pipeline starts.
package deps
