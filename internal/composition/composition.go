// Package composition edits and summarizes the ordered module/break steps of
// a test.
package composition

import (
	"fmt"

	"github.com/stemsi/modexam-backend/internal/model"
	"github.com/stemsi/modexam-backend/internal/timecodec"
)

const (
	// DefaultModuleTime is the allotted time of a newly appended module step.
	DefaultModuleTime = "30:00"
	// DefaultBreakTime is the duration of a newly appended break step.
	DefaultBreakTime = "10:00"
)

// Steps is the execution order of an exam.
type Steps []model.Step

// AppendModule adds a module step with the default allotted time.
func (s Steps) AppendModule(moduleUID string) Steps {
	return append(s, model.Step{Kind: model.StepKindModule, Time: DefaultModuleTime, ModuleUID: moduleUID})
}

// AppendBreak adds a break step with the default duration.
func (s Steps) AppendBreak() Steps {
	return append(s, model.Step{Kind: model.StepKindBreak, Time: DefaultBreakTime})
}

// Remove drops the step at index. Out-of-range indexes leave s unchanged.
func (s Steps) Remove(index int) Steps {
	if index < 0 || index >= len(s) {
		return s
	}
	out := make(Steps, 0, len(s)-1)
	out = append(out, s[:index]...)
	return append(out, s[index+1:]...)
}

// Move relocates the step at from to position to. It is a no-op when either
// index falls outside [0, len-1].
func (s Steps) Move(from, to int) Steps {
	if to < 0 || to >= len(s) || from < 0 || from >= len(s) {
		return s
	}
	out := make(Steps, 0, len(s))
	out = append(out, s[:from]...)
	out = append(out, s[from+1:]...)
	moved := s[from]
	out = append(out[:to], append(Steps{moved}, out[to:]...)...)
	return out
}

// SetMinutes edits the minute component of one step, clamped to [0,120].
func (s Steps) SetMinutes(index int, raw string) Steps {
	if index < 0 || index >= len(s) {
		return s
	}
	out := append(Steps(nil), s...)
	out[index].Time = timecodec.SetMinutes(out[index].Time, raw)
	return out
}

// SetSeconds edits the second component of one step, clamped to [0,59].
func (s Steps) SetSeconds(index int, raw string) Steps {
	if index < 0 || index >= len(s) {
		return s
	}
	out := append(Steps(nil), s...)
	out[index].Time = timecodec.SetSeconds(out[index].Time, raw)
	return out
}

// Normalize returns a copy with canonical zero-padded, clamped times. Break
// steps never keep a module reference.
func Normalize(steps []model.Step) Steps {
	out := make(Steps, len(steps))
	for i, st := range steps {
		out[i] = st
		out[i].Time = timecodec.Normalize(st.Time)
		if st.Kind == model.StepKindBreak {
			out[i].ModuleUID = ""
		}
	}
	return out
}

// ExamModules lists the module references of module steps in step order.
// A module used twice appears twice.
func ExamModules(steps []model.Step) []string {
	mods := make([]string, 0, len(steps))
	for _, st := range steps {
		if st.Kind == model.StepKindModule && st.ModuleUID != "" {
			mods = append(mods, st.ModuleUID)
		}
	}
	return mods
}

// Validate checks the rules a test must satisfy before it is persisted. It
// returns nil or a field -> message map.
func Validate(title string, level int, steps []model.Step) map[string]string {
	fields := make(map[string]string)
	if title == "" {
		fields["title"] = "title is a required field"
	}
	if level == 0 {
		fields["level"] = "level is a required field"
	}
	if len(steps) == 0 {
		fields["order"] = "order must contain at least one step"
	}
	for i, st := range steps {
		key := fmt.Sprintf("order[%d]", i)
		switch st.Kind {
		case model.StepKindModule:
			if st.ModuleUID == "" {
				fields[key] = "module step requires moduleUid"
			}
		case model.StepKindBreak:
		default:
			fields[key] = fmt.Sprintf("unknown step kind %q", st.Kind)
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// Aggregate sums module and break durations for display.
func Aggregate(steps []model.Step) model.TimeSummary {
	var moduleSeconds, breakSeconds int
	for _, st := range steps {
		switch st.Kind {
		case model.StepKindModule:
			moduleSeconds += timecodec.Parse(st.Time)
		case model.StepKindBreak:
			breakSeconds += timecodec.Parse(st.Time)
		}
	}
	return model.TimeSummary{
		ModuleTime:    timecodec.Format(moduleSeconds),
		BreakTime:     timecodec.Format(breakSeconds),
		ModuleSeconds: moduleSeconds,
		BreakSeconds:  breakSeconds,
	}
}
