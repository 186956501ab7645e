// Command cpcscraper harvests product images from the CPC lubricant catalog.
package main

func main() {
	Execute()
}
