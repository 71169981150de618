package connector

// Family is a closed enumeration of known connector families. The family
// decides the default tool to invoke and how a bearer token is handed to a
// subprocess connector; some downstream tools only accept header-style
// auth via a command-line flag rather than an environment variable.
type Family string

const (
	FamilyNotion   Family = "notion"
	FamilyTodoist  Family = "todoist"
	FamilyLinear   Family = "linear"
	FamilyObsidian Family = "obsidian"
	FamilyGeneric  Family = "generic"
)

// AuthInjection selects how a resolved bearer reaches a subprocess.
type AuthInjection string

const (
	InjectEnv  AuthInjection = "env"
	InjectArgv AuthInjection = "argv"
)

// familyProfile holds the per-family defaults.
type familyProfile struct {
	DefaultTool string
	Injection   AuthInjection
	EnvVar      string
	Flag        string
}

// familyProfiles is the explicit lookup table, keyed by the closed Family
// enumeration with FamilyGeneric as the fallback entry, so tool inference
// is total and reviewable.
var familyProfiles = map[Family]familyProfile{
	FamilyNotion:   {DefaultTool: "create_page", Injection: InjectEnv, EnvVar: "NOTION_TOKEN"},
	FamilyTodoist:  {DefaultTool: "create_task", Injection: InjectEnv, EnvVar: "TODOIST_API_TOKEN"},
	FamilyLinear:   {DefaultTool: "create_issue", Injection: InjectArgv, Flag: "--token"},
	FamilyObsidian: {DefaultTool: "append_note", Injection: InjectEnv, EnvVar: "OBSIDIAN_API_KEY"},
	FamilyGeneric:  {DefaultTool: "create", Injection: InjectEnv, EnvVar: "API_TOKEN"},
}

// profileFor returns the profile for a family, falling back to the generic
// entry for unknown or empty families.
func profileFor(family Family) familyProfile {
	if profile, ok := familyProfiles[family]; ok {
		return profile
	}
	return familyProfiles[FamilyGeneric]
}
