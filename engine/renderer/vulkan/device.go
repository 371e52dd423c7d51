package vulkan

import (
	"errors"
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

// ErrNoSuitableDevice is returned by Open when no physical device has a
// graphics queue.
var ErrNoSuitableDevice = errors.New("no physical device meets the requirements")

var loaderReady bool

type OpenConfig struct {
	AppName string
	// Validation enables VK_LAYER_KHRONOS_validation.
	Validation bool
}

// Device implements driver.Device over a logical device without a
// surface. Presentation images come from an offscreen Swapchain.
type Device struct {
	context *VulkanContext
	// presentLayout is where render passes leave the swap image.
	presentLayout vk.ImageLayout
}

var _ driver.Device = (*Device)(nil)

// Open loads the Vulkan loader, creates an instance and picks a device.
func Open(cfg OpenConfig) (*Device, error) {
	if !loaderReady {
		if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
			return nil, fmt.Errorf("failed to load the vulkan library: %w", err)
		}
		if err := vk.Init(); err != nil {
			return nil, fmt.Errorf("failed to initialize vk: %w", err)
		}
		loaderReady = true
	}

	context := &VulkanContext{}
	if err := createInstance(context, cfg); err != nil {
		return nil, err
	}
	if err := selectPhysicalDevice(context); err != nil {
		vk.DestroyInstance(context.Instance, context.Allocator)
		return nil, err
	}
	if err := createLogicalDevice(context); err != nil {
		vk.DestroyInstance(context.Instance, context.Allocator)
		return nil, err
	}
	if !detectDepthFormat(context) {
		d := &Device{context: context}
		d.Close()
		return nil, errors.New("failed to find a supported depth format")
	}
	return &Device{context: context, presentLayout: vk.ImageLayoutTransferSrcOptimal}, nil
}

func createInstance(context *VulkanContext, cfg OpenConfig) error {
	appInfo := vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		PApplicationName:   VulkanSafeString(cfg.AppName),
		ApplicationVersion: vk.MakeVersion(1, 0, 0),
		PEngineName:        VulkanSafeString("prism"),
		EngineVersion:      vk.MakeVersion(1, 0, 0),
		ApiVersion:         vk.MakeVersion(1, 1, 0),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &appInfo,
	}
	if cfg.Validation {
		layers := VulkanSafeStrings([]string{"VK_LAYER_KHRONOS_validation"})
		createInfo.EnabledLayerCount = uint32(len(layers))
		createInfo.PpEnabledLayerNames = layers
	}

	var instance vk.Instance
	if err := check("vkCreateInstance", vk.CreateInstance(&createInfo, context.Allocator, &instance)); err != nil {
		return err
	}
	context.Instance = instance
	vk.InitInstance(instance)
	core.LogInfo("Vulkan instance created.")
	return nil
}

// rateDevice scores a device; discrete GPUs win. -1 means unusable.
func rateDevice(properties vk.PhysicalDeviceProperties, hasGraphics bool) int {
	if !hasGraphics {
		return -1
	}
	switch properties.DeviceType {
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return 3
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return 2
	case vk.PhysicalDeviceTypeVirtualGpu:
		return 1
	default:
		return 0
	}
}

func graphicsQueueFamily(device vk.PhysicalDevice) (uint32, bool) {
	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, queueFamilies)

	for i, qf := range queueFamilies {
		qf.Deref()
		if qf.QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
			return uint32(i), true
		}
	}
	return 0, false
}

func selectPhysicalDevice(context *VulkanContext) error {
	var physicalDeviceCount uint32
	if err := check("vkEnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, nil)); err != nil {
		return err
	}
	if physicalDeviceCount == 0 {
		return ErrNoSuitableDevice
	}
	physicalDevices := make([]vk.PhysicalDevice, physicalDeviceCount)
	if err := check("vkEnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, physicalDevices)); err != nil {
		return err
	}

	best := -1
	for _, candidate := range physicalDevices {
		var properties vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(candidate, &properties)
		properties.Deref()

		queueIndex, ok := graphicsQueueFamily(candidate)
		score := rateDevice(properties, ok)
		if score <= best {
			continue
		}
		best = score
		context.PhysicalDevice = candidate
		context.GraphicsQueueIndex = queueIndex
		context.Properties = properties
	}
	if best < 0 {
		return ErrNoSuitableDevice
	}

	vk.GetPhysicalDeviceMemoryProperties(context.PhysicalDevice, &context.Memory)
	context.Memory.Deref()

	name := context.Properties.DeviceName[:]
	core.LogInfo("Selected device: '%s'.", string(name[:FindFirstZeroInByteArray(name)]))
	core.LogInfo(
		"Vulkan API version: %d.%d.%d",
		vk.Version(context.Properties.ApiVersion).Major(),
		vk.Version(context.Properties.ApiVersion).Minor(),
		vk.Version(context.Properties.ApiVersion).Patch(),
	)
	return nil
}

func createLogicalDevice(context *VulkanContext) error {
	queueCreateInfo := vk.DeviceQueueCreateInfo{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: context.GraphicsQueueIndex,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}
	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: 1,
		PQueueCreateInfos:    []vk.DeviceQueueCreateInfo{queueCreateInfo},
	}

	var device vk.Device
	if err := check("vkCreateDevice", vk.CreateDevice(context.PhysicalDevice, &deviceCreateInfo, context.Allocator, &device)); err != nil {
		return err
	}
	context.LogicalDevice = device
	core.LogInfo("Logical device created.")

	var queue vk.Queue
	vk.GetDeviceQueue(device, context.GraphicsQueueIndex, 0, &queue)
	context.GraphicsQueue = queue
	lockPool.SetQueueFamily(context.GraphicsQueueIndex)

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: context.GraphicsQueueIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if err := check("vkCreateCommandPool", vk.CreateCommandPool(device, &poolCreateInfo, context.Allocator, &pool)); err != nil {
		vk.DestroyDevice(device, context.Allocator)
		return err
	}
	context.GraphicsCommandPool = pool
	core.LogInfo("Graphics command pool created.")
	return nil
}

func detectDepthFormat(context *VulkanContext) bool {
	candidates := []vk.Format{
		vk.FormatD32Sfloat,
		vk.FormatD24UnormS8Uint,
	}
	flags := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	for _, candidate := range candidates {
		var properties vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(context.PhysicalDevice, candidate, &properties)
		properties.Deref()
		if properties.OptimalTilingFeatures&flags == flags {
			context.DepthFormat = candidate
			return true
		}
	}
	return false
}

// Context exposes the raw handles.
func (d *Device) Context() *VulkanContext {
	return d.context
}

// DepthFormat is the depth format chosen at Open.
func (d *Device) DepthFormat() driver.Format {
	return fromVkFormat(d.context.DepthFormat)
}

func (d *Device) WaitIdle() error {
	return lockPool.SafeQueueCall(d.context.GraphicsQueueIndex, func() error {
		return check("vkDeviceWaitIdle", vk.DeviceWaitIdle(d.context.LogicalDevice))
	})
}

// Close destroys the command pool, the logical device and the instance.
// Every object created from the device must be destroyed first.
func (d *Device) Close() {
	context := d.context
	if context == nil {
		return
	}
	if context.LogicalDevice != nil {
		vk.DeviceWaitIdle(context.LogicalDevice)
		core.LogInfo("Destroying command pools...")
		vk.DestroyCommandPool(context.LogicalDevice, context.GraphicsCommandPool, context.Allocator)
		core.LogInfo("Destroying logical device...")
		vk.DestroyDevice(context.LogicalDevice, context.Allocator)
		context.LogicalDevice = nil
	}
	context.GraphicsQueue = nil
	context.PhysicalDevice = nil
	if context.Instance != nil {
		vk.DestroyInstance(context.Instance, context.Allocator)
		context.Instance = nil
	}
	d.context = nil
}
