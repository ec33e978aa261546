package terminal

type commandGroup uint8

const (
	otherCmds commandGroup = iota
	targetCmds
	dataCmds
	exprCmds
	settingsCmds
)

type commandGroupDescription struct {
	description string
	group       commandGroup
}

var commandGroupDescriptions = []commandGroupDescription{
	{"Loading targets and symbol files", targetCmds},
	{"Viewing threads, modules and memory", dataCmds},
	{"Expressions and completion", exprCmds},
	{"Debugger settings", settingsCmds},
	{"Other commands", otherCmds},
}
