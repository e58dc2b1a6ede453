// Command subtoolkit runs the subtitle extract, translate, and sync scripts
// as a supervised pipeline and reports their JSONL progress on the console.
package main
