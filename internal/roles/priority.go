package roles

// 员工角色
const (
	RoleNurse              = "NURSE"
	RoleEmergencyDoctor    = "EMERGENCY_DOCTOR"
	RoleCardiologist       = "CARDIOLOGIST"
	RolePulmonologist      = "PULMONOLOGIST"
	RoleNeurologist        = "NEUROLOGIST"
	RoleSurgeon            = "SURGEON"
	RoleEndocrinologist    = "ENDOCRINOLOGIST"
	RoleInfectiousDisease  = "INFECTIOUS_DISEASE"
	RoleBiomedicalEngineer = "BIOMEDICAL_ENGINEER"
	RoleObstetrician       = "OBSTETRICIAN"
	RolePsychiatrist       = "PSYCHIATRIST"
)

// alertRoleMapping 报警类型 → 角色优先级列表（最合适的角色在前）
// 静态枚举表：每个报警类型解析出的角色列表可审计、可枚举，未知类型走默认角色
var alertRoleMapping = map[string][]string{
	// 心脏/心血管
	"CARDIAC_ARREST":        {RoleEmergencyDoctor, RoleCardiologist},
	"CARDIAC_ABNORMAL":      {RoleEmergencyDoctor, RoleCardiologist},
	"MYOCARDIAL_INFARCTION": {RoleEmergencyDoctor, RoleCardiologist},

	// 呼吸
	"RESPIRATORY_DISTRESS": {RoleEmergencyDoctor, RolePulmonologist, RoleNurse},
	"O2_SATURATION_LOW":    {RoleNurse, RoleEmergencyDoctor, RolePulmonologist},
	"APNEA_DETECTED":       {RoleEmergencyDoctor, RoleNurse},
	"VENTILATOR_ALARM":     {RoleNurse, RoleEmergencyDoctor, RolePulmonologist},

	// 神经
	"STROKE_SUSPECTED":           {RoleEmergencyDoctor, RoleNeurologist},
	"SEIZURE_DETECTED":           {RoleNurse, RoleEmergencyDoctor, RoleNeurologist},
	"INTRACRANIAL_PRESSURE_HIGH": {RoleEmergencyDoctor, RoleNeurologist},

	// 血压
	"HYPERTENSION_CRISIS": {RoleNurse, RoleEmergencyDoctor},
	"HYPOTENSION_SEVERE":  {RoleNurse, RoleEmergencyDoctor},

	// 出血/外伤
	"HEMORRHAGE_MAJOR": {RoleEmergencyDoctor, RoleSurgeon},
	"TRAUMA_SEVERE":    {RoleEmergencyDoctor, RoleSurgeon},

	// 血糖/代谢
	"HYPOGLYCEMIA_SEVERE":   {RoleNurse, RoleEmergencyDoctor},
	"HYPERGLYCEMIA_SEVERE":  {RoleNurse, RoleEmergencyDoctor},
	"DIABETIC_KETOACIDOSIS": {RoleEmergencyDoctor, RoleEndocrinologist},

	// 感染/脓毒症
	"SEPSIS_SUSPECTED": {RoleEmergencyDoctor, RoleInfectiousDisease},
	"FEVER_HIGH":       {RoleNurse},

	// 用药/治疗
	"MEDICATION_DELAYED": {RoleNurse},
	"MEDICATION_ERROR":   {RoleNurse, RoleEmergencyDoctor},
	"ADVERSE_REACTION":   {RoleNurse, RoleEmergencyDoctor},
	"IV_INFILTRATION":    {RoleNurse},

	// 设备/技术
	"EQUIPMENT_MALFUNCTION": {RoleBiomedicalEngineer, RoleNurse},
	"EQUIPMENT_LOW_BATTERY": {RoleBiomedicalEngineer, RoleNurse},

	// 患者安全
	"FALL_DETECTED":           {RoleNurse, RoleEmergencyDoctor},
	"BED_EXIT_UNAUTHORIZED":   {RoleNurse},
	"RESTRAINT_ALERT":         {RoleNurse, RoleEmergencyDoctor},

	// 产科
	"FETAL_DISTRESS":      {RoleEmergencyDoctor, RoleObstetrician},
	"LABOR_COMPLICATIONS": {RoleNurse, RoleObstetrician},

	// 精神科
	"AGITATION_SEVERE": {RoleNurse, RoleEmergencyDoctor, RolePsychiatrist},
	"SUICIDE_RISK":     {RolePsychiatrist, RoleNurse, RoleEmergencyDoctor},
}

// defaultRoles 未映射的报警类型的默认角色列表
var defaultRoles = []string{RoleNurse}

// Priorities 返回报警类型对应的角色优先级列表
// 未知类型返回默认角色列表，保证任何报警类型都能解析出至少一个角色
func Priorities(alertType string) []string {
	if priorities, ok := alertRoleMapping[alertType]; ok {
		// 返回副本，防止调用方修改静态表
		out := make([]string, len(priorities))
		copy(out, priorities)
		return out
	}
	out := make([]string, len(defaultRoles))
	copy(out, defaultRoles)
	return out
}
