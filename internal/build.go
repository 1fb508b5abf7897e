package internal

import "runtime/debug"

var (
	AppName    = "bbb-screen-recorder"
	AppVersion = "devel"
	ModName    string

	BuildInfo *debug.BuildInfo
)

func init() {
	BuildInfo, _ = debug.ReadBuildInfo()
	if BuildInfo != nil {
		ModName = BuildInfo.Main.Path
	}
}
