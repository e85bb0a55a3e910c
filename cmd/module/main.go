// Package main serves the realsense camera model as a modular resource.
package main

import (
	"go.viam.com/rdk/components/camera"
	"go.viam.com/rdk/module"
	"go.viam.com/rdk/resource"

	"github.com/viam-soleng/realsense-rgbd/realsense"
)

func main() {
	module.ModularMain(resource.APIModel{API: camera.API, Model: realsense.Model})
}
