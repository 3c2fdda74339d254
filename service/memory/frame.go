package memory

// FrameState is the state of a physical frame or of a page table entry
type FrameState string

const (
	FrameFree      FrameState = "free"
	FrameAllocated FrameState = "allocated"
	FramePinned    FrameState = "pinned"
	FrameDirty     FrameState = "dirty"
	// FrameSwapped marks a page table entry whose content lives in the swap area.
	FrameSwapped FrameState = "swapped"
)

type frame struct {
	state FrameState
	owner string
	page  int
	data  []byte
}

func (f *frame) free() bool { return f.state == FrameFree }

// movable frames can be evicted or relocated
func (f *frame) movable() bool {
	return f.state == FrameAllocated || f.state == FrameDirty
}

func (f *frame) reset() {
	f.state = FrameFree
	f.owner = ""
	f.page = 0
	f.data = nil
}
