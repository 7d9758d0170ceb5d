package command

import (
	"strconv"
	"strings"
)

// Line is one command line split into its command word and arguments.
type Line struct {
	// Command is the first word, lowercased.
	Command string
	// Args are the remaining words with their case kept; nil when there are none.
	Args []string
}

// Parse splits line on whitespace.
//
// Postcondition: Command is empty only when line is blank.
func Parse(line string) Line {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Line{}
	}
	l := Line{Command: strings.ToLower(fields[0])}
	if len(fields) > 1 {
		l.Args = fields[1:]
	}
	return l
}

// SkillsVerb selects what the skills command does.
type SkillsVerb int

const (
	// SkillsShow lists every skill, or one skill's tree when Target is set.
	SkillsShow SkillsVerb = iota
	SkillsBuy
	SkillsSell
	SkillsReset
	SkillsDrop
)

var skillsVerbs = map[string]SkillsVerb{
	"buy":    SkillsBuy,
	"learn":  SkillsBuy,
	"sell":   SkillsSell,
	"forget": SkillsSell,
	"reset":  SkillsReset,
	"drop":   SkillsDrop,
}

// SkillsArgs is a parsed skills command.
type SkillsArgs struct {
	Verb SkillsVerb
	// Target names the ability (buy, sell) or skill (show, reset, drop).
	Target string
	// Level is the drop target; HasLevel is false when none was given.
	Level    int
	HasLevel bool
}

// ParseSkills reads the skills sub-verb and its operands from args. Words
// that are not a known verb name a skill to show.
func ParseSkills(args []string) SkillsArgs {
	if len(args) == 0 {
		return SkillsArgs{Verb: SkillsShow}
	}
	verb, ok := skillsVerbs[strings.ToLower(args[0])]
	if !ok {
		return SkillsArgs{Verb: SkillsShow, Target: strings.Join(args, " ")}
	}
	out := SkillsArgs{Verb: verb}
	if verb == SkillsDrop {
		out.Target, out.Level, out.HasLevel = trailingLevel(args[1:])
		return out
	}
	out.Target = strings.Join(args[1:], " ")
	return out
}

// trailingLevel splits "<name words> <n>" into the name and n.
func trailingLevel(args []string) (name string, level int, ok bool) {
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[len(args)-1]); err == nil {
			return strings.Join(args[:len(args)-1], " "), n, true
		}
	}
	return strings.Join(args, " "), 0, false
}
