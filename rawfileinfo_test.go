package rawfile

import "testing"

func makeTestInfo(year, month, day uint16, nControllers uint32, controllers []VirtualControllerInfo) *RawFileInfo {
	return &RawFileInfo{
		Year: year, Month: month, Day: day,
		Hour: 12, Minute: 30, Second: 45, Millisecond: 123,
		Controllers:  controllers,
		NControllers: nControllers,
	}
}

func padControllers(cs []VirtualControllerInfo) []VirtualControllerInfo {
	out := make([]VirtualControllerInfo, maxVCIEntries)
	copy(out, cs)
	return out
}

func TestStrictValidationValidDateAndControllers(t *testing.T) {
	controllers := padControllers([]VirtualControllerInfo{
		{DeviceType: 0, DeviceIndex: 0, Offset: 10000},
		{DeviceType: 1, DeviceIndex: 0, Offset: 20000},
	})
	info := makeTestInfo(2020, 5, 15, 2, controllers)
	if !info.hasValidControllersStrict(100000) {
		t.Error("expected strict validation to pass")
	}
}

func TestStrictValidationRejectsInvalidYear(t *testing.T) {
	controllers := padControllers([]VirtualControllerInfo{{DeviceType: 0, DeviceIndex: 0, Offset: 10000}})
	if makeTestInfo(1999, 5, 15, 1, controllers).hasValidControllersStrict(100000) {
		t.Error("year 1999 should be rejected")
	}
}

func TestStrictValidationRejectsFutureYear(t *testing.T) {
	controllers := padControllers([]VirtualControllerInfo{{DeviceType: 0, DeviceIndex: 0, Offset: 10000}})
	if makeTestInfo(2101, 5, 15, 1, controllers).hasValidControllersStrict(100000) {
		t.Error("year 2101 should be rejected")
	}
}

func TestStrictValidationRejectsInvalidMonth(t *testing.T) {
	controllers := padControllers([]VirtualControllerInfo{{DeviceType: 0, DeviceIndex: 0, Offset: 10000}})
	if makeTestInfo(2020, 0, 15, 1, controllers).hasValidControllersStrict(100000) {
		t.Error("month 0 should be rejected")
	}
	if makeTestInfo(2020, 13, 15, 1, controllers).hasValidControllersStrict(100000) {
		t.Error("month 13 should be rejected")
	}
}

func TestStrictValidationRejectsInvalidDay(t *testing.T) {
	controllers := padControllers([]VirtualControllerInfo{{DeviceType: 0, DeviceIndex: 0, Offset: 10000}})
	if makeTestInfo(2020, 5, 0, 1, controllers).hasValidControllersStrict(100000) {
		t.Error("day 0 should be rejected")
	}
	if makeTestInfo(2020, 5, 32, 1, controllers).hasValidControllersStrict(100000) {
		t.Error("day 32 should be rejected")
	}
}

func TestStrictValidationRejectsTooManyControllers(t *testing.T) {
	controllers := padControllers(nil)
	if makeTestInfo(2020, 5, 15, 17, controllers).hasValidControllersStrict(100000) {
		t.Error("n_controllers > 16 should be rejected")
	}
}

func TestVCIOnlyRejectsAllZero(t *testing.T) {
	controllers := padControllers(nil)
	if makeTestInfo(2020, 5, 15, 0, controllers).hasValidControllersVCIOnly(100000) {
		t.Error("all-zero table should be rejected")
	}
}

func TestVCIOnlyAcceptsOneValidRestZero(t *testing.T) {
	controllers := padControllers([]VirtualControllerInfo{{DeviceType: 0, DeviceIndex: 0, Offset: 10000}})
	if !makeTestInfo(2020, 5, 15, 1, controllers).hasValidControllersVCIOnly(100000) {
		t.Error("expected acceptance")
	}
}

func TestVCIOnlyRejectsGarbageEntry(t *testing.T) {
	controllers := padControllers([]VirtualControllerInfo{
		{DeviceType: 0, DeviceIndex: 0, Offset: 10000},
		{DeviceType: 99, DeviceIndex: 0, Offset: 10000},
	})
	if makeTestInfo(2020, 5, 15, 2, controllers).hasValidControllersVCIOnly(100000) {
		t.Error("garbage device_type should be rejected")
	}
}

func TestVCIOnlyRejectsInvalidDeviceIndex(t *testing.T) {
	controllers := padControllers([]VirtualControllerInfo{{DeviceType: 0, DeviceIndex: 10, Offset: 10000}})
	if makeTestInfo(2020, 5, 15, 1, controllers).hasValidControllersVCIOnly(100000) {
		t.Error("device_index > 7 should be rejected")
	}
}

func TestVCIOnlyRejectsOffsetTooSmall(t *testing.T) {
	controllers := padControllers([]VirtualControllerInfo{{DeviceType: 0, DeviceIndex: 0, Offset: 4000}})
	if makeTestInfo(2020, 5, 15, 1, controllers).hasValidControllersVCIOnly(100000) {
		t.Error("offset <= 4096 should be rejected")
	}
}

func TestVCIOnlyRejectsOffsetBeyondFile(t *testing.T) {
	controllers := padControllers([]VirtualControllerInfo{{DeviceType: 0, DeviceIndex: 0, Offset: 200000}})
	if makeTestInfo(2020, 5, 15, 1, controllers).hasValidControllersVCIOnly(100000) {
		t.Error("offset beyond file size should be rejected")
	}
}

func TestVCIOnlyAcceptsAllDeviceTypes(t *testing.T) {
	for deviceType := int32(0); deviceType <= 5; deviceType++ {
		controllers := padControllers([]VirtualControllerInfo{{DeviceType: deviceType, DeviceIndex: 0, Offset: 10000}})
		if !makeTestInfo(2020, 5, 15, 1, controllers).hasValidControllersVCIOnly(100000) {
			t.Errorf("device_type %d should be valid", deviceType)
		}
	}
}

func TestVCIOnlyAcceptsMultipleValidEntries(t *testing.T) {
	controllers := padControllers([]VirtualControllerInfo{
		{DeviceType: 0, DeviceIndex: 0, Offset: 10000},
		{DeviceType: 1, DeviceIndex: 0, Offset: 20000},
		{DeviceType: 3, DeviceIndex: 1, Offset: 30000},
	})
	if !makeTestInfo(2020, 5, 15, 3, controllers).hasValidControllersVCIOnly(100000) {
		t.Error("expected acceptance")
	}
}

func TestTwoPassStrictSucceeds(t *testing.T) {
	controllers := padControllers([]VirtualControllerInfo{{DeviceType: 0, DeviceIndex: 0, Offset: 10000}})
	if !makeTestInfo(2020, 5, 15, 1, controllers).HasValidControllers(100000) {
		t.Error("expected acceptance")
	}
}

func TestTwoPassFallsBackToVCIOnly(t *testing.T) {
	controllers := padControllers([]VirtualControllerInfo{{DeviceType: 0, DeviceIndex: 0, Offset: 10000}})
	info := makeTestInfo(1999, 5, 15, 1, controllers)
	if info.hasValidControllersStrict(100000) {
		t.Error("strict should fail on invalid year")
	}
	if !info.hasValidControllersVCIOnly(100000) {
		t.Error("vci-only should pass")
	}
	if !info.HasValidControllers(100000) {
		t.Error("two-pass should fall back to vci-only and pass")
	}
}

func TestTwoPassBothFail(t *testing.T) {
	controllers := padControllers(nil)
	info := makeTestInfo(1999, 5, 15, 0, controllers)
	if info.hasValidControllersStrict(100000) || info.hasValidControllersVCIOnly(100000) || info.HasValidControllers(100000) {
		t.Error("expected all-zero table with bad date to fail both passes")
	}
}

func TestRunHeaderAddrFindsMSController(t *testing.T) {
	controllers := padControllers([]VirtualControllerInfo{
		{DeviceType: 2, DeviceIndex: 0, Offset: 5000},
		{DeviceType: 0, DeviceIndex: 0, Offset: 10000},
		{DeviceType: 1, DeviceIndex: 0, Offset: 15000},
	})
	info := makeTestInfo(2020, 5, 15, 3, controllers)
	if got := info.RunHeaderAddr(); got != 10000 {
		t.Errorf("RunHeaderAddr() = %d, want 10000", got)
	}
}

func TestRunHeaderAddrFallbackToFirstNonzero(t *testing.T) {
	controllers := padControllers([]VirtualControllerInfo{
		{DeviceType: 0, DeviceIndex: 0, Offset: 0},
		{DeviceType: 2, DeviceIndex: 0, Offset: 8000},
		{DeviceType: 3, DeviceIndex: 0, Offset: 12000},
	})
	info := makeTestInfo(2020, 5, 15, 3, controllers)
	if got := info.RunHeaderAddr(); got != 8000 {
		t.Errorf("RunHeaderAddr() = %d, want 8000", got)
	}
}

func TestRunHeaderAddrReturnsZeroWhenAllZero(t *testing.T) {
	info := makeTestInfo(2020, 5, 15, 0, padControllers(nil))
	if got := info.RunHeaderAddr(); got != 0 {
		t.Errorf("RunHeaderAddr() = %d, want 0", got)
	}
}

func TestControllerMethodFindsByTypeAndIndex(t *testing.T) {
	controllers := padControllers([]VirtualControllerInfo{
		{DeviceType: 0, DeviceIndex: 0, Offset: 10000},
		{DeviceType: 0, DeviceIndex: 1, Offset: 15000},
		{DeviceType: 3, DeviceIndex: 0, Offset: 20000},
	})
	info := makeTestInfo(2020, 5, 15, 3, controllers)

	c, ok := info.Controller(0, 1)
	if !ok || c.Offset != 15000 {
		t.Errorf("Controller(0,1) = %+v, %v", c, ok)
	}
	c2, ok := info.Controller(3, 0)
	if !ok || c2.Offset != 20000 {
		t.Errorf("Controller(3,0) = %+v, %v", c2, ok)
	}
	if _, ok := info.Controller(5, 0); ok {
		t.Error("Controller(5,0) should not be found")
	}
}

func TestAcquisitionDateFormatting(t *testing.T) {
	info := &RawFileInfo{Year: 2023, Month: 7, Day: 4, Hour: 14, Minute: 30, Second: 15}
	if got := info.AcquisitionDate(); got != "2023-07-04T14:30:15" {
		t.Errorf("AcquisitionDate() = %q", got)
	}
}
