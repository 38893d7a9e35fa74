package semi

// frame is one call-frame on the VM's frame stack (spec §4.4 Frame
// model): the executing closure, the PC to resume at on return, the
// offset into the VM's shared value stack that is this frame's register
// 0, the owning module, and the head of this frame's deferred-call chain.
type frame struct {
	closure  *closure
	pc       int
	base     int
	module   *module
	deferred *closure // LIFO chain; nil when empty
	isDefer  bool     // true for a frame pushed to run one deferred closure
}

const (
	minFrames = 4
	maxFrames = 1024
	minStack  = 256
	maxStack  = 1 << 20
)
