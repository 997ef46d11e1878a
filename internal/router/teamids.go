package router

// teamIDs maps a team name to its tracker team UUID for the team custom
// field. Teams with no UUID provisioned in the tracker map to "", which
// skips team assignment rather than failing ticket creation.
var teamIDs = map[string]string{
	"IBS - CITRIX":                        "",
	"IBS - Virtual Server Infrastructure": "be18814d-a872-432f-9d48-aa8a41b61b80",
	"IBS - Mail Service":                  "82d9c204-17c0-46fb-a396-b412a2eb857e",
	"IBS - Backup":                        "",
	"IBS - ROT":                           "eda8c020-1ee2-490b-bde6-baa2ef36269d",

	"SAP Basis":       "cbc86a6e-8c12-4e3a-8ecd-d4c52b83b17b",
	"SAP Sales":       "4c652e69-e207-4e98-b4bf-ca90838de87b",
	"SAP Operations":  "c066a998-37cd-4f7e-ac31-f35fd8543910",
	"SAP Development": "ac2f0447-b1f2-4d7e-bc3e-bf7e9bf377d6",

	"OI - DB Development":     "e2435921-b8cd-4685-8554-83bd8023a198",
	"OI - DB Administration":  "",
	"OI - IBS":                "54292b37-54d3-4e43-a406-4732afbfad4d",
	"OI - RDA":                "8c63b9c0-21ea-4cb3-b925-f113cc0c31eb",
	"OI - Telecommunications": "d9b1de6e-6a08-4039-b1a4-9cb31b025608",
}

// TeamID returns the tracker team UUID for a team name. The second return
// is false when no UUID is provisioned and team assignment must be skipped.
func TeamID(team string) (string, bool) {
	id, ok := teamIDs[team]
	return id, ok && id != ""
}
