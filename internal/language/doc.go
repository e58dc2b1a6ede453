// Package language normalizes the language codes passed to the stage
// scripts. Extraction selects tracks by ISO 639-2 code, translation and
// name sync take ISO 639-1 codes, and the CLI shows English display names.
package language
