package projects

import (
	"context"

	"backend-forestguard/internal/db"
	"backend-forestguard/internal/workers"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

var (
	ErrInvalidRole   = errors.New("invalid role")
	ErrUnknownWorker = errors.New("unknown worker")
)

var validRoles = map[string]struct{}{
	workers.RoleAdministrator: {},
	workers.RoleMarker:        {},
	workers.RoleFeller:        {},
	workers.RoleOperator:      {},
	workers.RoleTracer:        {},
	workers.RoleAuxiliary:     {},
}

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

func (s *Service) CreateProject(ctx context.Context, input Project) (Project, error) {
	input.ID = uuid.NewString()
	row := s.db.QueryRow(ctx, `
		INSERT INTO proyectos (id, name, description, created_by)
		VALUES ($1,$2,$3,$4)
		RETURNING created_at
	`, input.ID, input.Name, input.Description, input.CreatedBy)
	if err := row.Scan(&input.CreatedAt); err != nil {
		return Project{}, errors.Wrap(err, "create project")
	}
	return input, nil
}

func (s *Service) GetProject(ctx context.Context, id string) (Project, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, description, created_by, created_at
		FROM proyectos WHERE id=$1
	`, id)
	var p Project
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedBy, &p.CreatedAt); err != nil {
		return Project{}, errors.Wrapf(err, "get project %s", id)
	}
	return p, nil
}

// AssignWorker sets the worker's role in the project, replacing any previous role.
func (s *Service) AssignWorker(ctx context.Context, projectID, userID, role string) (Assignment, error) {
	if _, ok := validRoles[role]; !ok {
		return Assignment{}, errors.Wrap(ErrInvalidRole, role)
	}
	row := s.db.QueryRow(ctx, `
		UPDATE usuarios
		SET proyectos = COALESCE(proyectos, '{}'::jsonb) || jsonb_build_object($2::text, $3::text)
		WHERE id=$1
		RETURNING name
	`, userID, projectID, role)
	a := Assignment{ProjectID: projectID, UserID: userID, Role: role}
	if err := row.Scan(&a.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Assignment{}, errors.Wrap(ErrUnknownWorker, userID)
		}
		return Assignment{}, errors.Wrapf(err, "assign %s to %s", userID, projectID)
	}
	return a, nil
}

func (s *Service) RemoveWorker(ctx context.Context, projectID, userID string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE usuarios SET proyectos = proyectos - $2::text
		WHERE id=$1
	`, userID, projectID)
	return errors.Wrapf(err, "remove %s from %s", userID, projectID)
}

func (s *Service) Workers(ctx context.Context, projectID string) ([]Assignment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, proyectos->>$1
		FROM usuarios WHERE proyectos ? $1
		ORDER BY name
	`, projectID)
	if err != nil {
		return nil, errors.Wrapf(err, "workers of %s", projectID)
	}
	defer rows.Close()

	var list []Assignment
	for rows.Next() {
		a := Assignment{ProjectID: projectID}
		if err := rows.Scan(&a.UserID, &a.Name, &a.Role); err != nil {
			return nil, errors.Wrapf(err, "scan worker of %s", projectID)
		}
		list = append(list, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "workers of %s", projectID)
	}
	return list, nil
}
