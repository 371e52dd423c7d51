package headless

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

var ErrOutOfPoolMemory = driver.ErrOutOfPoolMemory

type Image struct {
	object
	desc   driver.ImageDesc
	texels []byte
	// Writes counts successful Write calls.
	Writes int
}

func (i *Image) Format() driver.Format {
	return i.desc.Format
}

func (i *Image) Extent() driver.Extent {
	return i.desc.Extent
}

func (i *Image) Name() string {
	return i.desc.Name
}

func (i *Image) Write(texels []byte) error {
	if i.destroyed {
		return fmt.Errorf("image %q: write after destroy", i.desc.Name)
	}
	if i.desc.Usage&driver.IMAGE_USAGE_SAMPLED == 0 {
		return fmt.Errorf("image %q: only sampled images accept texel writes", i.desc.Name)
	}
	want := int(i.desc.Extent.Width) * int(i.desc.Extent.Height) * i.desc.Format.TexelSize()
	if len(texels) != want {
		return fmt.Errorf("image %q: got %d bytes of texels, want %d", i.desc.Name, len(texels), want)
	}
	i.texels = append(i.texels[:0], texels...)
	i.Writes++
	return nil
}

// Texels returns what the last Write stored.
func (i *Image) Texels() []byte {
	return i.texels
}

type Buffer struct {
	object
	desc driver.BufferDesc
	data []byte
	// Writes counts successful Write calls.
	Writes int
}

func (b *Buffer) Size() uint64 {
	return b.desc.Size
}

func (b *Buffer) Name() string {
	return b.desc.Name
}

func (b *Buffer) Write(offset uint64, data []byte) error {
	if b.destroyed {
		return fmt.Errorf("buffer %q: write after destroy", b.desc.Name)
	}
	if offset+uint64(len(data)) > b.desc.Size {
		return fmt.Errorf("buffer %q: write of %d bytes at %d exceeds size %d", b.desc.Name, len(data), offset, b.desc.Size)
	}
	copy(b.data[offset:], data)
	b.Writes++
	return nil
}

// Bytes returns the buffer contents.
func (b *Buffer) Bytes() []byte {
	return b.data
}

type Sampler struct {
	object
}

type RenderPass struct {
	object
	desc *driver.RenderPassDesc
}

func (r *RenderPass) Desc() *driver.RenderPassDesc {
	return r.desc
}

type Framebuffer struct {
	object
	extent driver.Extent
	Views  []driver.Image
}

func (f *Framebuffer) Extent() driver.Extent {
	return f.extent
}

type ShaderModule struct {
	object
	stage driver.ShaderStage
	Code  []byte
}

func (s *ShaderModule) Stage() driver.ShaderStage {
	return s.stage
}

type Pipeline struct {
	object
	Desc driver.PipelineDesc
}

func (p *Pipeline) Name() string {
	return p.Desc.Name
}

type Semaphore struct {
	object
}

type DescriptorSetLayout struct {
	object
	bindings []driver.DescriptorBinding
}

func (l *DescriptorSetLayout) Bindings() []driver.DescriptorBinding {
	return l.bindings
}

type DescriptorPool struct {
	object
	maxSets   uint32
	allocated uint32
	nextSet   uint64
}

func (p *DescriptorPool) Allocate(layout driver.DescriptorSetLayout) (driver.DescriptorSet, error) {
	if p.destroyed {
		return nil, errors.New("allocate from destroyed descriptor pool")
	}
	if p.allocated >= p.maxSets {
		return nil, ErrOutOfPoolMemory
	}
	p.allocated++
	p.nextSet++
	return &DescriptorSet{
		ID:     p.nextSet,
		pool:   p,
		layout: layout,
		Writes: make(map[uint32]DescriptorWrite),
	}, nil
}

func (p *DescriptorPool) Free(set driver.DescriptorSet) error {
	ds, ok := set.(*DescriptorSet)
	if !ok || ds.pool != p {
		return errors.New("descriptor set does not belong to this pool")
	}
	if ds.Freed {
		return fmt.Errorf("descriptor set %d freed twice", ds.ID)
	}
	ds.Freed = true
	p.allocated--
	return nil
}

func (p *DescriptorPool) Reset() error {
	p.allocated = 0
	return nil
}

// Allocated returns the number of live sets.
func (p *DescriptorPool) Allocated() uint32 {
	return p.allocated
}

// DescriptorWrite is the last update applied to one binding.
type DescriptorWrite struct {
	Buffer  driver.Buffer
	Offset  uint64
	Size    uint64
	Image   driver.Image
	Sampler driver.Sampler
	// ImageWrites is the image's Write count when it was bound, so tests
	// can tell whether texels were uploaded before sampling.
	ImageWrites int
}

type DescriptorSet struct {
	ID     uint64
	Freed  bool
	pool   *DescriptorPool
	layout driver.DescriptorSetLayout
	Writes map[uint32]DescriptorWrite
}

func (s *DescriptorSet) Layout() driver.DescriptorSetLayout {
	return s.layout
}

func (s *DescriptorSet) WriteBuffer(binding uint32, buffer driver.Buffer, offset, size uint64) {
	s.Writes[binding] = DescriptorWrite{Buffer: buffer, Offset: offset, Size: size}
}

func (s *DescriptorSet) WriteImage(binding uint32, image driver.Image, sampler driver.Sampler) {
	w := DescriptorWrite{Image: image, Sampler: sampler}
	if img, ok := image.(*Image); ok {
		w.ImageWrites = img.Writes
	}
	s.Writes[binding] = w
}
