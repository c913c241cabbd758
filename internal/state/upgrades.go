package state

// UpgradeFuncs is a list of functions to apply in order to upgrade the version of a given state.
// Each function consumes a list of strings, each representing one line of input, and returns a
// list of strings representing the upgraded state.
type UpgradeFuncs []func([]string) ([]string, error)

// upgrades is a list of upgrade functions to process old states. Append only, the index of a
// function is the version it upgrades from.
var upgrades = UpgradeFuncs{}
