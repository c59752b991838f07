package models

type Project struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Owner string `json:"owner,omitempty"`
	// Created timestamp (ns)
	CreatedTS int64 `json:"created_ts,omitempty"`
	// Updated timestamp (ns) - last time metadata or chat activity changed
	UpdatedTS int64 `json:"updated_ts,omitempty"`
}

type Task struct {
	ID       string `json:"id"`
	Project  string `json:"project"`
	Title    string `json:"title"`
	Assignee string `json:"assignee,omitempty"`
	// open|doing|done
	Status    string `json:"status,omitempty"`
	CreatedTS int64  `json:"created_ts,omitempty"`
	UpdatedTS int64  `json:"updated_ts,omitempty"`
}

type Member struct {
	Project string `json:"project"`
	User    string `json:"user"`
	// member|admin
	Role    string `json:"role,omitempty"`
	AddedTS int64  `json:"added_ts,omitempty"`
}
