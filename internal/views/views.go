// Package views derives what each screen shows from the loaded collections.
// Everything here is pure; callers pass in the collections they hold.
package views

import (
	"github.com/geocoder89/teamflow/internal/domain/project"
	"github.com/geocoder89/teamflow/internal/domain/task"
)

// All disables a dashboard filter dimension.
const All = "all"

type Filter struct {
	Owner  string `json:"owner"`
	Status string `json:"status"`
}

func (f Filter) normalized() Filter {
	if f.Owner == "" {
		f.Owner = All
	}
	if f.Status == "" {
		f.Status = All
	}
	return f
}

func FilterTasks(tasks []task.Task, f Filter) []task.Task {
	f = f.normalized()

	out := make([]task.Task, 0, len(tasks))
	for _, t := range tasks {
		ownerMatch := f.Owner == All || t.OwnerName == f.Owner
		statusMatch := f.Status == All || string(t.Status) == f.Status
		if ownerMatch && statusMatch {
			out = append(out, t)
		}
	}
	return out
}

type Summary struct {
	TotalProjects int `json:"totalProjects"`
	PendingTasks  int `json:"pendingTasks"`
	DoneTasks     int `json:"doneTasks"`
}

// Summarize counts over the unfiltered collections.
func Summarize(projects []project.Project, tasks []task.Task) Summary {
	s := Summary{TotalProjects: len(projects)}
	for _, t := range tasks {
		if t.Status == task.StatusDone {
			s.DoneTasks++
		} else {
			s.PendingTasks++
		}
	}
	return s
}

// Owners lists distinct owner names, projects first, in first-seen order.
func Owners(projects []project.Project, tasks []task.Task) []string {
	seen := make(map[string]struct{})
	out := []string{}

	add := func(name string) {
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}

	for _, p := range projects {
		add(p.OwnerName)
	}
	for _, t := range tasks {
		add(t.OwnerName)
	}
	return out
}

func MyTasks(tasks []task.Task, accountID string) []task.Task {
	out := make([]task.Task, 0)
	for _, t := range tasks {
		if t.OwnerID == accountID {
			out = append(out, t)
		}
	}
	return out
}

type ProjectGroup struct {
	project.Project
	Tasks []task.Task `json:"tasks"`
}

func GroupByProject(projects []project.Project, tasks []task.Task) []ProjectGroup {
	byProject := make(map[string][]task.Task, len(projects))
	for _, t := range tasks {
		byProject[t.ProjectID] = append(byProject[t.ProjectID], t)
	}

	out := make([]ProjectGroup, 0, len(projects))
	for _, p := range projects {
		ts := byProject[p.ID]
		if ts == nil {
			ts = []task.Task{}
		}
		out = append(out, ProjectGroup{Project: p, Tasks: ts})
	}
	return out
}
