package main

import "tools.zach/dev/badgecord/internal/paths"

// DataPaths aliases [paths.DataDir] into the main package.
type DataPaths = paths.DataDir
