package main

import "github.com/bigbluebutton/bbb-screen-recorder/internal/app"

func main() {
	app.Main()
}
