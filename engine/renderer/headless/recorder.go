package headless

import (
	"fmt"
	"strings"

	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

type Op int

const (
	OP_BEGIN_RENDER_PASS Op = iota
	OP_NEXT_SUBPASS
	OP_END_RENDER_PASS
	OP_BIND_PIPELINE
	OP_BIND_DESCRIPTOR_SETS
	OP_PUSH_CONSTANTS
	OP_SET_VIEWPORT
	OP_SET_SCISSOR
	OP_BIND_VERTEX_BUFFER
	OP_BIND_INDEX_BUFFER
	OP_DRAW
	OP_DRAW_INDEXED
)

var opNames = [...]string{
	"begin_render_pass",
	"next_subpass",
	"end_render_pass",
	"bind_pipeline",
	"bind_descriptor_sets",
	"push_constants",
	"set_viewport",
	"set_scissor",
	"bind_vertex_buffer",
	"bind_index_buffer",
	"draw",
	"draw_indexed",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// Command is one recorded call. Only the fields relevant to Op are set.
type Command struct {
	Op          Op
	RenderPass  driver.RenderPass
	Framebuffer driver.Framebuffer
	Area        driver.Rect
	Clear       []driver.ClearValue
	Pipeline    driver.Pipeline
	FirstSet    uint32
	Sets        []driver.DescriptorSet
	Buffer      driver.Buffer
	Offset      uint64
	Data        []byte
	// Count is vertex or index count for draws.
	Count     uint32
	Instances uint32
}

func (c Command) String() string {
	switch c.Op {
	case OP_BIND_PIPELINE:
		return fmt.Sprintf("%s %s", c.Op, c.Pipeline.Name())
	case OP_BIND_DESCRIPTOR_SETS:
		return fmt.Sprintf("%s first=%d count=%d", c.Op, c.FirstSet, len(c.Sets))
	case OP_DRAW, OP_DRAW_INDEXED:
		return fmt.Sprintf("%s count=%d instances=%d", c.Op, c.Count, c.Instances)
	case OP_BEGIN_RENDER_PASS:
		return fmt.Sprintf("%s %dx%d clears=%d", c.Op, c.Area.Width, c.Area.Height, len(c.Clear))
	default:
		return c.Op.String()
	}
}

// Recorder implements driver.CommandRecorder by appending Commands. It
// also tracks pass nesting, so recording a subpass advance outside a pass
// is caught the way a validation layer would.
type Recorder struct {
	Commands []Command
	inPass   bool
	subpass  int
	// Violations collects misuse such as nested passes.
	Violations []string
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Reset() {
	r.Commands = r.Commands[:0]
	r.Violations = nil
	r.inPass = false
	r.subpass = 0
}

// Count returns how many commands of op were recorded.
func (r *Recorder) Count(op Op) int {
	n := 0
	for _, c := range r.Commands {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Filter returns the commands of op, in order.
func (r *Recorder) Filter(op Op) []Command {
	var out []Command
	for _, c := range r.Commands {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (r *Recorder) String() string {
	var sb strings.Builder
	for i, c := range r.Commands {
		fmt.Fprintf(&sb, "%03d %s\n", i, c)
	}
	return sb.String()
}

func (r *Recorder) violation(format string, args ...interface{}) {
	r.Violations = append(r.Violations, fmt.Sprintf(format, args...))
}

func (r *Recorder) BeginRenderPass(pass driver.RenderPass, framebuffer driver.Framebuffer, area driver.Rect, clear []driver.ClearValue) {
	if r.inPass {
		r.violation("begin_render_pass inside an active render pass")
	}
	r.inPass = true
	r.subpass = 0
	cv := make([]driver.ClearValue, len(clear))
	copy(cv, clear)
	r.Commands = append(r.Commands, Command{Op: OP_BEGIN_RENDER_PASS, RenderPass: pass, Framebuffer: framebuffer, Area: area, Clear: cv})
}

func (r *Recorder) NextSubpass() {
	if !r.inPass {
		r.violation("next_subpass outside a render pass")
	} else if pass := r.currentPass(); pass != nil && r.subpass+1 >= len(pass.Desc().Subpasses) {
		r.violation("next_subpass past the last subpass")
	}
	r.subpass++
	r.Commands = append(r.Commands, Command{Op: OP_NEXT_SUBPASS})
}

func (r *Recorder) EndRenderPass() {
	if !r.inPass {
		r.violation("end_render_pass outside a render pass")
	}
	r.inPass = false
	r.Commands = append(r.Commands, Command{Op: OP_END_RENDER_PASS})
}

func (r *Recorder) currentPass() driver.RenderPass {
	for i := len(r.Commands) - 1; i >= 0; i-- {
		if r.Commands[i].Op == OP_BEGIN_RENDER_PASS {
			return r.Commands[i].RenderPass
		}
	}
	return nil
}

func (r *Recorder) BindPipeline(pipeline driver.Pipeline) {
	r.Commands = append(r.Commands, Command{Op: OP_BIND_PIPELINE, Pipeline: pipeline})
}

func (r *Recorder) BindDescriptorSets(pipeline driver.Pipeline, firstSet uint32, sets []driver.DescriptorSet) {
	s := make([]driver.DescriptorSet, len(sets))
	copy(s, sets)
	r.Commands = append(r.Commands, Command{Op: OP_BIND_DESCRIPTOR_SETS, Pipeline: pipeline, FirstSet: firstSet, Sets: s})
}

func (r *Recorder) PushConstants(pipeline driver.Pipeline, offset uint32, data []byte) {
	d := make([]byte, len(data))
	copy(d, data)
	r.Commands = append(r.Commands, Command{Op: OP_PUSH_CONSTANTS, Pipeline: pipeline, Offset: uint64(offset), Data: d})
}

func (r *Recorder) SetViewport(viewport driver.Viewport) {
	r.Commands = append(r.Commands, Command{Op: OP_SET_VIEWPORT})
}

func (r *Recorder) SetScissor(scissor driver.Rect) {
	r.Commands = append(r.Commands, Command{Op: OP_SET_SCISSOR, Area: scissor})
}

func (r *Recorder) BindVertexBuffer(buffer driver.Buffer, offset uint64) {
	r.Commands = append(r.Commands, Command{Op: OP_BIND_VERTEX_BUFFER, Buffer: buffer, Offset: offset})
}

func (r *Recorder) BindIndexBuffer(buffer driver.Buffer, offset uint64, indexType driver.IndexType) {
	r.Commands = append(r.Commands, Command{Op: OP_BIND_INDEX_BUFFER, Buffer: buffer, Offset: offset})
}

func (r *Recorder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	if !r.inPass {
		r.violation("draw outside a render pass")
	}
	r.Commands = append(r.Commands, Command{Op: OP_DRAW, Count: vertexCount, Instances: instanceCount})
}

func (r *Recorder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	if !r.inPass {
		r.violation("draw_indexed outside a render pass")
	}
	r.Commands = append(r.Commands, Command{Op: OP_DRAW_INDEXED, Count: indexCount, Instances: instanceCount})
}

// CommandBuffer is a Recorder with a begin/end lifecycle.
type CommandBuffer struct {
	object
	Recorder
	recording bool
}

func (c *CommandBuffer) Begin() error {
	if c.recording {
		return fmt.Errorf("command buffer %d already recording", c.id)
	}
	c.recording = true
	return nil
}

func (c *CommandBuffer) End() error {
	if !c.recording {
		return fmt.Errorf("command buffer %d not recording", c.id)
	}
	c.recording = false
	return nil
}

func (c *CommandBuffer) Reset() error {
	c.Recorder.Reset()
	c.recording = false
	return nil
}
