package policy

// BuiltinPolicies returns the policies every engine starts with.
func BuiltinPolicies() []Policy {
	return []Policy{
		officialFilesPolicy(),
		pluginLimitPolicy(),
		masterOrderPolicy(),
	}
}

// officialFilesPolicy keeps the game's own files active.
func officialFilesPolicy() Policy {
	return Policy{
		Name:        "official-files",
		Description: "Official game files must stay active",
		Severity:    SeverityError,
		Enabled:     true,
		Rego: `package pluginlist.official

import rego.v1

deny contains violation if {
	some plugin in input.plugins
	plugin.official
	plugin.state == "inactive"
	violation := {
		"plugin": plugin.name,
		"message": sprintf("%s is an official file and must stay active", [plugin.name]),
	}
}
`,
	}
}

// pluginLimitPolicy enforces the number of load order slots.
func pluginLimitPolicy() Policy {
	return Policy{
		Name:        "plugin-limit",
		Description: "Active plugins must fit the game's load order slots",
		Severity:    SeverityError,
		Enabled:     true,
		Rego: `package pluginlist.limits

import rego.v1

full := [plugin.name |
	some plugin in input.plugins
	plugin.state == "active"
	not plugin.light
]

light := [plugin.name |
	some plugin in input.plugins
	plugin.state == "active"
	plugin.light
]

deny contains violation if {
	count(full) > input.limits.max_full_plugins
	msg := sprintf("%d full plugins are active, %s loads at most %d", [count(full), input.game, input.limits.max_full_plugins])
	violation := {"message": msg}
}

deny contains violation if {
	count(light) > input.limits.max_light_plugins
	msg := sprintf("%d light plugins are active, %s loads at most %d", [count(light), input.game, input.limits.max_light_plugins])
	violation := {"message": msg}
}
`,
	}
}

// masterOrderPolicy warns about masters placed after regular plugins. The game loads
// masters first whatever the list says.
func masterOrderPolicy() Policy {
	return Policy{
		Name:        "master-order",
		Description: "Masters should be ordered before regular plugins",
		Severity:    SeverityWarning,
		Enabled:     true,
		Rego: `package pluginlist.masters

import rego.v1

deny contains violation if {
	some master in input.plugins
	master.master
	master.state == "active"
	earlier := [plugin.name |
		some plugin in input.plugins
		not plugin.master
		plugin.state == "active"
		plugin.priority < master.priority
	]
	count(earlier) > 0
	violation := {
		"plugin": master.name,
		"message": sprintf("master %s is ordered after %s", [master.name, concat(", ", earlier)]),
	}
}
`,
	}
}
