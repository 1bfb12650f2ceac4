//go:build js && wasm

package main

import (
	"encoding/json"
	"syscall/js"

	"github.com/voxelsplace/voxrt/api"
	"github.com/voxelsplace/voxrt/terrain"
)

func bytesFromJS(v js.Value) []byte {
	buf := make([]byte, v.Get("length").Int())
	js.CopyBytesToGo(buf, v)
	return buf
}

func bytesToJS(b []byte) js.Value {
	uint8arr := js.Global().Get("Uint8Array").New(len(b))
	js.CopyBytesToJS(uint8arr, b)
	return uint8arr
}

func vec3FromJS(v js.Value) [3]float64 {
	return [3]float64{v.Index(0).Float(), v.Index(1).Float(), v.Index(2).Float()}
}

func map2glb(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return js.ValueOf("missing map bytes")
	}
	out, err := api.MapToGLB(bytesFromJS(args[0]))
	if err != nil {
		return js.ValueOf(err.Error())
	}
	return bytesToJS(out)
}

// raycast(mapBytes, [x,y,z], [dx,dy,dz]) returns the hit as a JSON string.
func raycast(this js.Value, args []js.Value) any {
	if len(args) < 3 {
		return js.ValueOf("missing map bytes, origin or direction")
	}
	hit, err := api.RayQuery(bytesFromJS(args[0]), vec3FromJS(args[1]), vec3FromJS(args[2]))
	if err != nil {
		return js.ValueOf(err.Error())
	}
	out, err := json.Marshal(hit)
	if err != nil {
		return js.ValueOf(err.Error())
	}
	return js.ValueOf(string(out))
}

// editMap(mapBytes|null, editsJSON) returns the edited map bytes.
func editMap(this js.Value, args []js.Value) any {
	if len(args) < 2 {
		return js.ValueOf("missing map bytes or edits")
	}
	var mapBytes []byte
	if !args[0].IsNull() && !args[0].IsUndefined() {
		mapBytes = bytesFromJS(args[0])
	}
	out, err := api.EditMap(mapBytes, []byte(args[1].String()))
	if err != nil {
		return js.ValueOf(err.Error())
	}
	return bytesToJS(out)
}

// genTerrain(seed, radius) returns serialized map bytes.
func genTerrain(this js.Value, args []js.Value) any {
	if len(args) < 2 {
		return js.ValueOf("missing seed or radius")
	}
	cfg := terrain.DefaultConfig()
	cfg.Seed = uint64(args[0].Int())
	out, err := api.GenerateTerrain(cfg, int32(args[1].Int()))
	if err != nil {
		return js.ValueOf(err.Error())
	}
	return bytesToJS(out)
}

func main() {
	js.Global().Set("map2glb", js.FuncOf(map2glb))
	js.Global().Set("raycast", js.FuncOf(raycast))
	js.Global().Set("editMap", js.FuncOf(editMap))
	js.Global().Set("genTerrain", js.FuncOf(genTerrain))
	select {}
}
