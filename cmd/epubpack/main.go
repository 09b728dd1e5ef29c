// Command epubpack packages book descriptions into EPUB files.
package main

import "github.com/jvs-project/epubpack/internal/cli"

func main() {
	cli.Execute()
}
