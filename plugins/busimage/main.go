// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

// Command busimage is a frei0r source plugin that shows the newest frame
// of a frame bus topic. Build it as a shared object:
//
//	go build -buildmode=c-shared -o busimage.so ./plugins/busimage
package main

/*
#include <stdint.h>
#include <stdlib.h>

typedef void* f0r_instance_t;
typedef void* f0r_param_t;
typedef char* f0r_param_string;

typedef struct f0r_plugin_info {
	const char* name;
	const char* author;
	int plugin_type;
	int color_model;
	int frei0r_version;
	int major_version;
	int minor_version;
	int num_params;
	const char* explanation;
} f0r_plugin_info_t;

typedef struct f0r_param_info {
	const char* name;
	int type;
	const char* explanation;
} f0r_param_info_t;
*/
import "C"

import (
	"sync"
	"unsafe"

	"github.com/frei0rhost/frei0rhost/internal/frei0r"
)

const (
	majorVersion = 0
	minorVersion = 1
)

// Metadata strings live for the life of the process.
var (
	cName        = C.CString("busimage")
	cAuthor      = C.CString("Frei0rHost Contributors")
	cExplanation = C.CString("Shows the newest frame of a frame bus topic")
	cParams      = func() [][2]*C.char {
		out := make([][2]*C.char, len(params))
		for i, p := range params {
			out[i] = [2]*C.char{C.CString(p.Name), C.CString(p.Explanation)}
		}
		return out
	}()
)

// instance pairs a source with the C strings handed out by get_param_value.
type instance struct {
	src     *source
	strings map[int]*C.char
}

// instances maps the opaque handles given to the host to their state. The
// handles are C allocations so no Go pointer crosses the boundary.
var (
	instancesMu sync.Mutex
	instances   = map[uintptr]*instance{}
)

func lookup(h C.f0r_instance_t) *instance {
	instancesMu.Lock()
	defer instancesMu.Unlock()
	return instances[uintptr(h)]
}

//export f0r_init
func f0r_init() C.int { return 1 }

//export f0r_deinit
func f0r_deinit() {}

//export f0r_get_plugin_info
func f0r_get_plugin_info(info *C.f0r_plugin_info_t) {
	info.name = cName
	info.author = cAuthor
	info.plugin_type = C.int(frei0r.KindSource)
	info.color_model = C.int(frei0r.ColorModelBGRA8888)
	info.frei0r_version = 1
	info.major_version = majorVersion
	info.minor_version = minorVersion
	info.num_params = C.int(len(params))
	info.explanation = cExplanation
}

//export f0r_get_param_info
func f0r_get_param_info(info *C.f0r_param_info_t, index C.int) {
	i := int(index)
	if i < 0 || i >= len(params) {
		return
	}
	info.name = cParams[i][0]
	info._type = C.int(params[i].Kind)
	info.explanation = cParams[i][1]
}

//export f0r_construct
func f0r_construct(width, height C.uint) C.f0r_instance_t {
	h := C.malloc(1)
	instancesMu.Lock()
	instances[uintptr(h)] = &instance{
		src:     newSource(int(width), int(height), dialBus),
		strings: map[int]*C.char{},
	}
	instancesMu.Unlock()
	return C.f0r_instance_t(h)
}

//export f0r_destruct
func f0r_destruct(h C.f0r_instance_t) {
	instancesMu.Lock()
	inst := instances[uintptr(h)]
	delete(instances, uintptr(h))
	instancesMu.Unlock()
	if inst == nil {
		return
	}
	inst.src.close()
	for _, s := range inst.strings {
		C.free(unsafe.Pointer(s))
	}
	C.free(unsafe.Pointer(h))
}

//export f0r_set_param_value
func f0r_set_param_value(h C.f0r_instance_t, param C.f0r_param_t, index C.int) {
	inst := lookup(h)
	if inst == nil || param == nil {
		return
	}
	s := *(*C.f0r_param_string)(param)
	if s == nil {
		return
	}
	inst.src.set(int(index), C.GoString(s))
}

//export f0r_get_param_value
func f0r_get_param_value(h C.f0r_instance_t, param C.f0r_param_t, index C.int) {
	inst := lookup(h)
	if inst == nil || param == nil || int(index) < 0 || int(index) >= len(params) {
		return
	}
	i := int(index)
	if old, ok := inst.strings[i]; ok {
		C.free(unsafe.Pointer(old))
	}
	s := C.CString(inst.src.get(i))
	inst.strings[i] = s
	*(*C.f0r_param_string)(param) = s
}

//export f0r_update
func f0r_update(h C.f0r_instance_t, _ C.double, _ *C.uint32_t, out *C.uint32_t) {
	inst := lookup(h)
	if inst == nil || out == nil {
		return
	}
	n := inst.src.width * inst.src.height
	inst.src.update(unsafe.Slice((*uint32)(unsafe.Pointer(out)), n))
}

func main() {}
