package roles

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriorities_MappedAlertType(t *testing.T) {
	priorities := Priorities("CARDIAC_ARREST")

	assert.Equal(t, []string{RoleEmergencyDoctor, RoleCardiologist}, priorities)
}

func TestPriorities_PriorityOrderPreserved(t *testing.T) {
	// 优先级顺序决定指派遍历顺序，顺序不能变
	priorities := Priorities("O2_SATURATION_LOW")

	assert.Equal(t, []string{RoleNurse, RoleEmergencyDoctor, RolePulmonologist}, priorities)
}

func TestPriorities_UnknownAlertType(t *testing.T) {
	priorities := Priorities("SOMETHING_NEW")

	assert.Equal(t, []string{RoleNurse}, priorities)
}

func TestPriorities_ReturnsCopy(t *testing.T) {
	priorities := Priorities("CARDIAC_ARREST")
	priorities[0] = "TAMPERED"

	again := Priorities("CARDIAC_ARREST")
	assert.Equal(t, RoleEmergencyDoctor, again[0])
}

func TestPriorities_AllMappingsNonEmpty(t *testing.T) {
	for alertType, priorities := range alertRoleMapping {
		assert.NotEmpty(t, priorities, "alert type %s has empty role list", alertType)
	}
}
