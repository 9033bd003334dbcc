// Package report writes scan results.
//
// Two kinds of output exist. The data files, ext_links.json and
// word_count.json, are written by WriteLinksFile and WriteWordCountFile
// while a scan runs. The summary writers (SimpleWriter, MarkdownWriter,
// JSONWriter) render a finished ScanReport for people or tools and all
// implement Writer.
package report
