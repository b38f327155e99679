package main

import "billnotify/cmd"

func main() {
	cmd.Run()
}
