// Package pipeline runs a site scan as an ordered list of steps.
//
// A scan fetches the homepage, extracts and writes its external links,
// locates the privacy policy anchor, fetches the linked page, and writes
// the word count of its visible text. Each stage is a Step that reads and
// fills in a shared model.ScanReport. The first failing step stops the
// scan; its error is wrapped in a *StageError naming the stage.
//
// BatchProcessor runs one pipeline per site with bounded concurrency
// using errgroup.
package pipeline
