package workers

import (
	"time"

	"backend-forestguard/internal/tracking"
)

// Roles a worker can hold within a project.
const (
	RoleAdministrator = "administrador"
	RoleMarker        = "marcador"
	RoleFeller        = "talador"
	RoleOperator      = "operador"
	RoleTracer        = "trazador"
	RoleAuxiliary     = "auxiliar"
)

type Worker struct {
	ID                 string                  `json:"id"`
	Name               string                  `json:"name"`
	Email              string                  `json:"email"`
	Projects           map[string]string       `json:"proyectos"`
	Location           *tracking.LocationPoint `json:"location,omitempty"`
	LastLocationUpdate *time.Time              `json:"last_location_update,omitempty"`
}

// Role returns the worker's role in a project, or "" when unassigned.
func (w Worker) Role(projectID string) string {
	return w.Projects[projectID]
}

func (w Worker) AssignedTo(projectID string) bool {
	_, ok := w.Projects[projectID]
	return ok
}

// Directory maps user ids to workers of one project.
type Directory map[string]Worker
