//go:build !(js && wasm)

package main

import (
	"fmt"
	"os"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/voxelsplace/voxrt/brush"
	"github.com/voxelsplace/voxrt/utils"
	"github.com/voxelsplace/voxrt/voxel"
)

func usage() {
	fmt.Println("Usage: voxrt <command> [args]")
	fmt.Println("Commands:")
	fmt.Println("  genterrain output.vxm <radius> [seed] [none|zlib|zstd]      (generate terrain sectors around the origin)")
	fmt.Println("  info input.vxm                                            (print sector, brick and voxel counts)")
	fmt.Println("  raycast input.vxm <x,y,z> <dx,dy,dz>                      (cast one ray through the map and the flat storage)")
	fmt.Println("  sync input.vxm <x,y,z> <viewXZ> <viewY> <budget> [meta.bin] (upload the map into a flat storage view)")
	fmt.Println("  render input.vxm output.png <w> <h> <eye x,y,z> <target x,y,z>")
	fmt.Println("  map2glb input.vxm output.glb                              (greedy mesh every sector into a .glb)")
	fmt.Println("  brush input.vxm|- output.vxm <replace|fill|erase> <radius> <a x,y,z> <b x,y,z> <id>")
	fmt.Println("  edit input.vxm|- edits.json output.vxm                    (apply {\"x,y,z\": id} edits)")
	fmt.Println("  repack output.vxm <none|zlib|zstd> input1.vxm [input2.vxm ...]  (merge maps and rewrite packs)")
	fmt.Println("  gennoise <percentageMin> <percentageMax> <sizeBricks> <seed> output.vxm")
	fmt.Println("Environment:")
	fmt.Println("  VOXRT_LOG_LEVEL   debug|info|warning|error")
}

func check(err error) {
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}

func scan(s string, v any) {
	_, err := fmt.Sscan(s, v)
	check(err)
}

func vec3(s string) [3]float64 {
	v, err := utils.ParseVec3(s)
	check(err)
	return v
}

func ivec3(s string) voxel.IVec3 {
	v := vec3(s)
	return voxel.IVec3{X: int32(v[0]), Y: int32(v[1]), Z: int32(v[2])}
}

func inputPath(s string) string {
	if s == "-" {
		return ""
	}
	return s
}

func main() {
	if lvl := os.Getenv("VOXRT_LOG_LEVEL"); lvl != "" {
		logs.SetLevel(logs.ParseLevel(lvl))
	}

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	args := os.Args[2:]
	switch os.Args[1] {
	case "genterrain":
		if len(args) < 2 || len(args) > 4 {
			usage()
			os.Exit(1)
		}
		var radius int32
		seed := uint64(1)
		codec := "zstd"
		scan(args[1], &radius)
		if len(args) > 2 {
			scan(args[2], &seed)
		}
		if len(args) > 3 {
			codec = args[3]
		}
		check(utils.RunGenTerrain(args[0], radius, seed, codec))
	case "info":
		if len(args) != 1 {
			usage()
			os.Exit(1)
		}
		check(utils.RunInfo(args[0]))
	case "raycast":
		if len(args) != 3 {
			usage()
			os.Exit(1)
		}
		check(utils.RunRaycast(args[0], vec3(args[1]), vec3(args[2])))
	case "sync":
		if len(args) != 5 && len(args) != 6 {
			usage()
			os.Exit(1)
		}
		var viewXZ, viewY uint32
		var budget int
		scan(args[2], &viewXZ)
		scan(args[3], &viewY)
		scan(args[4], &budget)
		metaOut := ""
		if len(args) == 6 {
			metaOut = args[5]
		}
		check(utils.RunSync(args[0], vec3(args[1]), viewXZ, viewY, budget, metaOut))
	case "render":
		if len(args) != 6 {
			usage()
			os.Exit(1)
		}
		var w, h int
		scan(args[2], &w)
		scan(args[3], &h)
		check(utils.RunRender(args[0], args[1], w, h, vec3(args[4]), vec3(args[5])))
	case "map2glb":
		if len(args) != 2 {
			usage()
			os.Exit(1)
		}
		check(utils.RunMap2GLB(args[0], args[1]))
	case "brush":
		if len(args) != 7 {
			usage()
			os.Exit(1)
		}
		p := brush.DefaultParams()
		action, ok := brush.ParseAction(args[2])
		if !ok {
			check(errors.Newf("unknown brush action %q", args[2]))
		}
		p.Action = action
		scan(args[3], &p.Radius)
		p.PointA, p.PointB = ivec3(args[4]), ivec3(args[5])
		var id uint8
		scan(args[6], &id)
		p.Material = voxel.Voxel(id)
		check(utils.RunBrush(inputPath(args[0]), args[1], p))
	case "edit":
		if len(args) != 3 {
			usage()
			os.Exit(1)
		}
		check(utils.RunEditFile(args[1], inputPath(args[0]), args[2]))
	case "repack":
		if len(args) < 3 {
			usage()
			os.Exit(1)
		}
		check(utils.RunRepack(args[2:], args[0], args[1], voxel.DefaultMaxPackSize))
	case "gennoise":
		if len(args) != 5 {
			usage()
			os.Exit(1)
		}
		var minP, maxP float64
		var size int32
		var seed int64
		scan(args[0], &minP)
		scan(args[1], &maxP)
		scan(args[2], &size)
		scan(args[3], &seed)
		check(utils.RunGenerateNoise(minP, maxP, size, seed, args[4]))
	default:
		usage()
		os.Exit(1)
	}

	fmt.Println("Operation completed!")
}
