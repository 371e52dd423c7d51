// Package headless is a driver that records instead of rendering. It backs
// the inspector CLI and the tests: every object is tracked so leaks show
// up, every command lands in a Recorder, and failures can be injected.
package headless

import (
	"errors"
	"fmt"
	"sync"

	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

var ErrInjected = errors.New("injected failure")

type Device struct {
	mu     sync.Mutex
	nextID uint64
	live   map[uint64]string

	// FailRenderPass, when set, is returned by the next NewRenderPass calls.
	FailRenderPass error
	// FailPool, when set, is returned by NewDescriptorPool.
	FailPool      error
	failPipelines map[string]error
}

func NewDevice() *Device {
	return &Device{
		live:          make(map[uint64]string),
		failPipelines: make(map[string]error),
	}
}

// FailPipeline makes NewPipeline fail for descriptions with the given name.
func (d *Device) FailPipeline(name string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.failPipelines, name)
		return
	}
	d.failPipelines[name] = err
}

// Live returns the number of objects created and not yet destroyed.
func (d *Device) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.live)
}

// LiveOf counts live objects of one kind ("image", "render_pass", ...).
func (d *Device) LiveOf(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, k := range d.live {
		if k == kind {
			n++
		}
	}
	return n
}

func (d *Device) track(kind string) object {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	d.live[d.nextID] = kind
	return object{id: d.nextID, kind: kind, device: d}
}

func (d *Device) untrack(id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.live, id)
}

type object struct {
	id        uint64
	kind      string
	device    *Device
	destroyed bool
}

func (o *object) ID() uint64 {
	return o.id
}

func (o *object) Destroy() {
	if o.destroyed {
		return
	}
	o.destroyed = true
	o.device.untrack(o.id)
}

func (o *object) Destroyed() bool {
	return o.destroyed
}

func (d *Device) NewImage(desc driver.ImageDesc) (driver.Image, error) {
	if desc.Extent.Width == 0 || desc.Extent.Height == 0 {
		return nil, fmt.Errorf("image %q: zero extent", desc.Name)
	}
	return &Image{object: d.track("image"), desc: desc}, nil
}

func (d *Device) NewBuffer(desc driver.BufferDesc) (driver.Buffer, error) {
	if desc.Size == 0 {
		return nil, fmt.Errorf("buffer %q: zero size", desc.Name)
	}
	return &Buffer{object: d.track("buffer"), desc: desc, data: make([]byte, desc.Size)}, nil
}

func (d *Device) NewSampler() (driver.Sampler, error) {
	return &Sampler{object: d.track("sampler")}, nil
}

func (d *Device) NewRenderPass(desc *driver.RenderPassDesc) (driver.RenderPass, error) {
	if d.FailRenderPass != nil {
		return nil, d.FailRenderPass
	}
	if err := validateRenderPass(desc); err != nil {
		return nil, err
	}
	return &RenderPass{object: d.track("render_pass"), desc: desc}, nil
}

// validateRenderPass mirrors the checks a Vulkan driver would reject.
func validateRenderPass(desc *driver.RenderPassDesc) error {
	if len(desc.Subpasses) == 0 {
		return errors.New("render pass without subpasses")
	}
	for i, sp := range desc.Subpasses {
		for _, c := range sp.Color {
			if c < 0 || c >= len(desc.Attachments) {
				return fmt.Errorf("subpass %d: color attachment %d out of range", i, c)
			}
			if desc.Attachments[c].Format.IsDepth() {
				return fmt.Errorf("subpass %d: depth format %s used as color", i, desc.Attachments[c].Format)
			}
		}
		for _, in := range sp.Input {
			if in < 0 || in >= len(desc.Attachments) {
				return fmt.Errorf("subpass %d: input attachment %d out of range", i, in)
			}
		}
		if sp.Depth >= 0 {
			if sp.Depth >= len(desc.Attachments) || !desc.Attachments[sp.Depth].Format.IsDepth() {
				return fmt.Errorf("subpass %d: invalid depth attachment %d", i, sp.Depth)
			}
		}
	}
	return nil
}

func (d *Device) NewFramebuffer(pass driver.RenderPass, attachments []driver.Image, extent driver.Extent) (driver.Framebuffer, error) {
	if got, want := len(attachments), len(pass.Desc().Attachments); got != want {
		return nil, fmt.Errorf("framebuffer: %d views for %d attachments", got, want)
	}
	for i, img := range attachments {
		if img.Format() != pass.Desc().Attachments[i].Format {
			return nil, fmt.Errorf("framebuffer: view %d format %s does not match attachment %s", i, img.Format(), pass.Desc().Attachments[i].Format)
		}
	}
	views := make([]driver.Image, len(attachments))
	copy(views, attachments)
	return &Framebuffer{object: d.track("framebuffer"), extent: extent, Views: views}, nil
}

func (d *Device) NewDescriptorSetLayout(bindings []driver.DescriptorBinding) (driver.DescriptorSetLayout, error) {
	b := make([]driver.DescriptorBinding, len(bindings))
	copy(b, bindings)
	return &DescriptorSetLayout{object: d.track("descriptor_set_layout"), bindings: b}, nil
}

func (d *Device) NewDescriptorPool(sizes map[driver.DescriptorType]uint32, maxSets uint32) (driver.DescriptorPool, error) {
	if d.FailPool != nil {
		return nil, d.FailPool
	}
	return &DescriptorPool{object: d.track("descriptor_pool"), maxSets: maxSets}, nil
}

func (d *Device) NewShaderModule(stage driver.ShaderStage, code []byte) (driver.ShaderModule, error) {
	return &ShaderModule{object: d.track("shader_module"), stage: stage, Code: code}, nil
}

func (d *Device) NewPipeline(desc *driver.PipelineDesc) (driver.Pipeline, error) {
	d.mu.Lock()
	err := d.failPipelines[desc.Name]
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if desc.RenderPass == nil {
		return nil, fmt.Errorf("pipeline %q: no render pass", desc.Name)
	}
	if desc.Subpass < 0 || desc.Subpass >= len(desc.RenderPass.Desc().Subpasses) {
		return nil, fmt.Errorf("pipeline %q: subpass %d out of range", desc.Name, desc.Subpass)
	}
	return &Pipeline{object: d.track("pipeline"), Desc: *desc}, nil
}

func (d *Device) NewSemaphore() (driver.Semaphore, error) {
	return &Semaphore{object: d.track("semaphore")}, nil
}

func (d *Device) NewCommandBuffer() (driver.CommandBuffer, error) {
	return &CommandBuffer{object: d.track("command_buffer")}, nil
}

func (d *Device) WaitIdle() error {
	return nil
}
