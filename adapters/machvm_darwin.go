//go:build darwin

package adapters

/*
#cgo LDFLAGS: -framework CoreFoundation
#include <mach/mach.h>
#include <mach/mach_vm.h>

// region_result packs the handful of fields the caller needs out of a
// mach_vm_region_recurse_64 call, so cgo only has to cross the boundary
// once per region instead of once per field.
typedef struct {
	mach_vm_address_t addr;
	mach_vm_size_t    size;
	vm_prot_t         cur_prot;
	vm_prot_t         max_prot;
	int               external_pager;
	int               ok;
} region_result;

static region_result next_region(task_t task, mach_vm_address_t addr) {
	region_result r = {0};
	vm_region_submap_info_data_64_t info;
	mach_msg_type_number_t count = VM_REGION_SUBMAP_INFO_COUNT_64;
	natural_t depth = 0;
	mach_vm_size_t size = 0;

	kern_return_t kr = mach_vm_region_recurse(task, &addr, &size, &depth,
		(vm_region_recurse_info_t)&info, &count);
	if (kr != KERN_SUCCESS) {
		r.ok = 0;
		return r;
	}
	r.ok = 1;
	r.addr = addr;
	r.size = size;
	r.cur_prot = info.protection;
	r.max_prot = info.max_protection;
	r.external_pager = info.external_pager;
	return r;
}

static kern_return_t get_task(pid_t pid, task_t *task) {
	return task_for_pid(mach_task_self(), pid, task);
}

// read_result packs the outcome of a mach_vm_read_overwrite call: a flat
// byte buffer plus however many bytes the kernel actually delivered, since a
// partially-mapped tail region can return short.
typedef struct {
	mach_vm_size_t got;
	kern_return_t  kr;
} read_result;

static read_result read_memory(task_t task, mach_vm_address_t addr, mach_vm_size_t size, void *out) {
	read_result r = {0};
	mach_vm_size_t got = 0;
	r.kr = mach_vm_read_overwrite(task, addr, size, (mach_vm_address_t)out, &got);
	r.got = got;
	return r;
}
*/
import "C"

import "unsafe"

// VMRegion is one entry of the address space walk returned by
// MachVMRegions (§4.B). Anonymous is true for memory with no backing
// pager (heap, malloc, mmap MAP_ANON, JIT-mapped pages) as opposed to a
// file-backed mapping such as a loaded Mach-O segment.
type VMRegion struct {
	Addr      uint64
	Size      uint64
	CurProt   uint32
	MaxProt   uint32
	Anonymous bool
}

// MachVMRegions walks the virtual memory regions of pid via
// mach_vm_region_recurse. Requires a task port for pid, which in practice
// means running as root or holding the task_for_pid-allow entitlement;
// returns nil rather than an error when that port cannot be acquired, which
// is itself noteworthy to callers comparing coverage across pids (§4.J).
func MachVMRegions(pid int32) []VMRegion {
	var task C.task_t
	if kr := C.get_task(C.pid_t(pid), &task); kr != C.KERN_SUCCESS {
		return nil
	}

	var regions []VMRegion
	addr := C.mach_vm_address_t(0)
	for i := 0; i < 1<<20; i++ { // hard ceiling; a region walk must terminate
		res := C.next_region(task, addr)
		if res.ok == 0 {
			break
		}
		regions = append(regions, VMRegion{
			Addr:      uint64(res.addr),
			Size:      uint64(res.size),
			CurProt:   uint32(res.cur_prot),
			MaxProt:   uint32(res.max_prot),
			Anonymous: res.external_pager == 0,
		})
		addr = res.addr + C.mach_vm_address_t(res.size)
	}
	return regions
}

// ReadProcessMemory reads size bytes at addr out of pid's address space via
// mach_vm_read_overwrite, requiring the same task port access as
// MachVMRegions. Returns nil if the task port can't be acquired or the read
// comes back short (e.g. the tail of the region is unmapped).
func ReadProcessMemory(pid int32, addr, size uint64) []byte {
	var task C.task_t
	if kr := C.get_task(C.pid_t(pid), &task); kr != C.KERN_SUCCESS {
		return nil
	}
	buf := make([]byte, size)
	res := C.read_memory(task, C.mach_vm_address_t(addr), C.mach_vm_size_t(size), unsafe.Pointer(&buf[0]))
	if res.kr != C.KERN_SUCCESS || uint64(res.got) != size {
		return nil
	}
	return buf
}
