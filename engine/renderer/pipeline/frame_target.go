package pipeline

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

const (
	ATTACHMENT_PRESENT = "present"
	ATTACHMENT_DEPTH   = "depth"
)

type AttachmentSpec struct {
	Name   string
	Format driver.Format
	Usage  driver.ImageUsage
	Load   driver.LoadOp
	Store  driver.StoreOp
	Clear  driver.ClearValue
}

type Attachment struct {
	AttachmentSpec
	// ResourceName is unique per device, used to name the backing image.
	ResourceName string
	Image        driver.Image
	swapImage    bool
	readAsInput  bool
}

// SubpassInfo is what a stage needs from its subpass to build pipeline
// state against it.
type SubpassInfo struct {
	Index      int
	ColorCount int
	HasDepth   bool
	Inputs     []string
}

type subpassDecl struct {
	stage string
	color []int
	input []int
	depth int
	used  bool
}

// FrameTarget is the render target of one swap image: the attachments
// every stage declared against it, the render pass spanning all stages and
// its framebuffer. Only the Pipeline creates and destroys targets.
type FrameTarget struct {
	index     int
	device    driver.Device
	extent    driver.Extent
	swapImage driver.Image

	attachments []*Attachment
	byName      map[string]int
	subpasses   []*subpassDecl
	open        *subpassDecl

	compileCalled bool
	renderPass    driver.RenderPass
	framebuffer   driver.Framebuffer
}

func newFrameTarget(index int, device driver.Device, swapchain driver.Swapchain) *FrameTarget {
	ft := &FrameTarget{
		index:     index,
		device:    device,
		extent:    swapchain.Extent(),
		swapImage: swapchain.Image(index),
		byName:    make(map[string]int),
	}
	ft.attachments = append(ft.attachments, &Attachment{
		AttachmentSpec: AttachmentSpec{
			Name:   ATTACHMENT_PRESENT,
			Format: swapchain.Format(),
			Usage:  driver.IMAGE_USAGE_COLOR_ATTACHMENT,
			Load:   driver.LOAD_OP_CLEAR,
			Store:  driver.STORE_OP_STORE,
			Clear:  driver.ClearColor(0, 0, 0, 1),
		},
		ResourceName: fmt.Sprintf("swap_%d", index),
		Image:        ft.swapImage,
		swapImage:    true,
	})
	ft.byName[ATTACHMENT_PRESENT] = 0
	ft.attachments = append(ft.attachments, &Attachment{
		AttachmentSpec: AttachmentSpec{
			Name:   ATTACHMENT_DEPTH,
			Format: swapchain.DepthFormat(),
			Usage:  driver.IMAGE_USAGE_DEPTH_ATTACHMENT,
			Load:   driver.LOAD_OP_CLEAR,
			Store:  driver.STORE_OP_DONT_CARE,
			Clear:  driver.ClearDepth(1, 0),
		},
	})
	ft.byName[ATTACHMENT_DEPTH] = 1
	return ft
}

func (ft *FrameTarget) Index() int {
	return ft.index
}

func (ft *FrameTarget) Extent() driver.Extent {
	return ft.extent
}

func (ft *FrameTarget) RenderPass() driver.RenderPass {
	return ft.renderPass
}

func (ft *FrameTarget) Framebuffer() driver.Framebuffer {
	return ft.framebuffer
}

func (ft *FrameTarget) IsCompiled() bool {
	return ft.renderPass != nil
}

func (ft *FrameTarget) Attachments() []*Attachment {
	return ft.attachments
}

func (ft *FrameTarget) Attachment(name string) (*Attachment, bool) {
	i, ok := ft.byName[name]
	if !ok {
		return nil, false
	}
	return ft.attachments[i], true
}

// DeclareAttachment adds an attachment. Declaring the same name again
// with an identical spec is a no-op, so every stage can declare what it
// reads without caring who declared it first.
func (ft *FrameTarget) DeclareAttachment(spec AttachmentSpec) error {
	if ft.compileCalled {
		return fmt.Errorf("%w: attachment %q declared on compiled target %d", ErrInvariantViolation, spec.Name, ft.index)
	}
	if spec.Name == "" {
		return fmt.Errorf("target %d: attachment without a name", ft.index)
	}
	if i, ok := ft.byName[spec.Name]; ok {
		if ft.attachments[i].AttachmentSpec != spec {
			return fmt.Errorf("target %d: attachment %q redeclared with a different spec", ft.index, spec.Name)
		}
		return nil
	}
	ft.byName[spec.Name] = len(ft.attachments)
	ft.attachments = append(ft.attachments, &Attachment{
		AttachmentSpec: spec,
		ResourceName:   fmt.Sprintf("%s_%d_%s", spec.Name, ft.index, uuid.New().String()),
	})
	return nil
}

func (ft *FrameTarget) currentSubpass(name string) (*subpassDecl, int, error) {
	if ft.open == nil {
		return nil, 0, fmt.Errorf("%w: attachment %q used outside PrepareAttachments", ErrInvariantViolation, name)
	}
	i, ok := ft.byName[name]
	if !ok {
		return nil, 0, fmt.Errorf("target %d: stage %q uses undeclared attachment %q", ft.index, ft.open.stage, name)
	}
	return ft.open, i, nil
}

// UseColor makes the current stage's subpass write the attachment.
func (ft *FrameTarget) UseColor(name string) error {
	sp, i, err := ft.currentSubpass(name)
	if err != nil {
		return err
	}
	if ft.attachments[i].Format.IsDepth() {
		return fmt.Errorf("target %d: depth attachment %q used as color", ft.index, name)
	}
	sp.color = append(sp.color, i)
	sp.used = true
	return nil
}

// UseDepth makes the current stage's subpass depth test against the
// attachment.
func (ft *FrameTarget) UseDepth(name string) error {
	sp, i, err := ft.currentSubpass(name)
	if err != nil {
		return err
	}
	if !ft.attachments[i].Format.IsDepth() {
		return fmt.Errorf("target %d: attachment %q is not a depth format", ft.index, name)
	}
	sp.depth = i
	sp.used = true
	return nil
}

// UseInput makes the current stage read the attachment, written by an
// earlier stage, as an input attachment.
func (ft *FrameTarget) UseInput(name string) error {
	sp, i, err := ft.currentSubpass(name)
	if err != nil {
		return err
	}
	written := false
	for _, prev := range ft.subpasses[:len(ft.subpasses)-1] {
		for _, c := range prev.color {
			if c == i {
				written = true
			}
		}
		if prev.depth == i {
			written = true
		}
	}
	if !written {
		return fmt.Errorf("target %d: stage %q reads %q before any stage writes it", ft.index, sp.stage, name)
	}
	ft.attachments[i].readAsInput = true
	sp.input = append(sp.input, i)
	sp.used = true
	return nil
}

func (ft *FrameTarget) beginSubpass(stage string) error {
	if ft.compileCalled {
		return fmt.Errorf("%w: subpass for %q opened on compiled target %d", ErrInvariantViolation, stage, ft.index)
	}
	if ft.open != nil {
		return fmt.Errorf("%w: subpass for %q still open on target %d", ErrInvariantViolation, ft.open.stage, ft.index)
	}
	ft.open = &subpassDecl{stage: stage, depth: -1}
	ft.subpasses = append(ft.subpasses, ft.open)
	return nil
}

// endSubpass applies the default usage to stages that declared nothing:
// write the swap image, test against the shared depth buffer.
func (ft *FrameTarget) endSubpass() {
	if ft.open == nil {
		return
	}
	if !ft.open.used {
		ft.open.color = []int{ft.byName[ATTACHMENT_PRESENT]}
		ft.open.depth = ft.byName[ATTACHMENT_DEPTH]
	}
	ft.open = nil
}

// Subpass returns the subpass declared for the named stage.
func (ft *FrameTarget) Subpass(stage string) (SubpassInfo, bool) {
	for i, sp := range ft.subpasses {
		if sp.stage != stage {
			continue
		}
		info := SubpassInfo{Index: i, ColorCount: len(sp.color), HasDepth: sp.depth >= 0}
		for _, in := range sp.input {
			info.Inputs = append(info.Inputs, ft.attachments[in].Name)
		}
		return info, true
	}
	return SubpassInfo{}, false
}

func (ft *FrameTarget) describe() *driver.RenderPassDesc {
	desc := &driver.RenderPassDesc{}
	for _, a := range ft.attachments {
		desc.Attachments = append(desc.Attachments, driver.AttachmentDesc{
			Format:  a.Format,
			Load:    a.Load,
			Store:   a.Store,
			Present: a.swapImage,
			Input:   a.readAsInput,
		})
	}
	for _, sp := range ft.subpasses {
		desc.Subpasses = append(desc.Subpasses, driver.SubpassDesc{
			Color: append([]int(nil), sp.color...),
			Input: append([]int(nil), sp.input...),
			Depth: sp.depth,
		})
	}
	return desc
}

// Compile creates the attachment images, the render pass over every
// declared subpass and the framebuffer. It runs at most once per target;
// a second call fails without touching the device.
func (ft *FrameTarget) Compile() error {
	if ft.compileCalled {
		return fmt.Errorf("%w: target %d compiled twice", ErrInvariantViolation, ft.index)
	}
	ft.compileCalled = true
	if ft.open != nil {
		return fmt.Errorf("%w: target %d compiled with subpass %q open", ErrInvariantViolation, ft.index, ft.open.stage)
	}
	if len(ft.subpasses) == 0 {
		return fmt.Errorf("target %d: no subpasses declared", ft.index)
	}

	views := make([]driver.Image, len(ft.attachments))
	for i, a := range ft.attachments {
		if a.swapImage {
			views[i] = a.Image
			continue
		}
		usage := a.Usage
		if a.readAsInput {
			usage |= driver.IMAGE_USAGE_INPUT_ATTACHMENT
		}
		if a.Format.IsDepth() {
			usage |= driver.IMAGE_USAGE_DEPTH_ATTACHMENT
		}
		img, err := ft.device.NewImage(driver.ImageDesc{
			Name:   a.ResourceName,
			Format: a.Format,
			Extent: ft.extent,
			Usage:  usage,
		})
		if err != nil {
			ft.destroyImages()
			return fmt.Errorf("target %d: attachment %q: %w", ft.index, a.Name, err)
		}
		a.Image = img
		views[i] = img
	}

	pass, err := ft.device.NewRenderPass(ft.describe())
	if err != nil {
		ft.destroyImages()
		return fmt.Errorf("target %d: render pass: %w", ft.index, err)
	}
	fb, err := ft.device.NewFramebuffer(pass, views, ft.extent)
	if err != nil {
		pass.Destroy()
		ft.destroyImages()
		return fmt.Errorf("target %d: framebuffer: %w", ft.index, err)
	}
	ft.renderPass = pass
	ft.framebuffer = fb
	core.LogDebug("frame target %d compiled: %d attachments, %d subpasses", ft.index, len(ft.attachments), len(ft.subpasses))
	return nil
}

// ClearValues returns one clear value per attachment, each attachment's
// own clear overridden positionally by overrides.
func (ft *FrameTarget) ClearValues(overrides []driver.ClearValue) []driver.ClearValue {
	out := make([]driver.ClearValue, len(ft.attachments))
	for i, a := range ft.attachments {
		out[i] = a.Clear
		if i < len(overrides) {
			out[i] = overrides[i]
		}
	}
	return out
}

func (ft *FrameTarget) destroyImages() {
	for _, a := range ft.attachments {
		if !a.swapImage && a.Image != nil {
			a.Image.Destroy()
			a.Image = nil
		}
	}
}

// Destroy releases the framebuffer, the render pass and the owned images.
// The swap image belongs to the presenter and is left alone.
func (ft *FrameTarget) Destroy() {
	if ft.framebuffer != nil {
		ft.framebuffer.Destroy()
		ft.framebuffer = nil
	}
	if ft.renderPass != nil {
		ft.renderPass.Destroy()
		ft.renderPass = nil
	}
	ft.destroyImages()
}
