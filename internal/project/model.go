package project

import "time"

// SchemaVersion is written to every stored project. Documents without a
// version are version 1 and predate teamMembers and teamName.
const SchemaVersion = 2

// Feature is one entry of a project's feature list.
type Feature struct {
	ID   string
	Text string
}

// Member is one entry of a project's team member list.
type Member struct {
	ID   string
	Name string
}

// Scores holds the four review criteria.
type Scores struct {
	Innovation       float64
	Feasibility      float64
	UIUX             float64
	PromptEfficiency float64
}

// Total returns the sum of all criteria.
func (s Scores) Total() float64 {
	return s.Innovation + s.Feasibility + s.UIUX + s.PromptEfficiency
}

// Project is a team's single submission. PromptPDFName and PromptPDFURL are
// either both set or both nil, as are Scores and TotalScore.
type Project struct {
	ID            string
	TeamID        string
	Email         string
	TeamName      string
	Name          string
	Description   string
	GithubURL     string
	Features      []Feature
	TeamMembers   []Member
	PromptPDFName *string
	PromptPDFURL  *string
	SubmittedAt   time.Time
	Scores        *Scores
	TotalScore    *float64
	SchemaVersion int
}

// HasPDF reports whether a prompt document is attached.
func (p *Project) HasPDF() bool {
	return p.PromptPDFName != nil
}

// Submission holds the fields a team may set on create and overwrite on update.
type Submission struct {
	Name        string
	Description string
	GithubURL   string
	TeamName    string
	Features    []Feature
	TeamMembers []Member
}

// Attachment describes a freshly uploaded prompt document.
type Attachment struct {
	Filename string
	BlobName string
	URL      string
}
