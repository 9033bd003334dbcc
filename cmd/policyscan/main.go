// Package main provides the entry point for the policyscan CLI.
//
// policyscan fetches a site's homepage, records the external resources it
// links to, follows its "Privacy policy" link and counts the words of the
// policy page.
//
// Usage:
//
//	policyscan scan [base-url...]
//	policyscan history [base-url]
//	policyscan compare <base-url>
//
// See --help for all available options.
package main

func main() {
	Execute()
}
