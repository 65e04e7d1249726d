// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/yomira-identity/internal/platform/middleware"
	requestutil "github.com/taibuivan/yomira-identity/internal/platform/request"
	"github.com/taibuivan/yomira-identity/internal/platform/respond"
	"github.com/taibuivan/yomira-identity/internal/platform/sec"
	"github.com/taibuivan/yomira-identity/internal/platform/validate"
	"github.com/taibuivan/yomira-identity/internal/users/auth"
	"github.com/taibuivan/yomira-identity/pkg/pagination"
)

// Query and body field names.
const (
	fieldSearch    = "search"
	fieldRole      = "role"
	fieldRoles     = "roles"
	fieldIsActive  = "is_active"
	fieldSortBy    = "sort_by"
	fieldSortOrder = "sort_order"
	fieldID        = "id"
)

const maxNameLength = 100

// assignableRoles lists the roles an administrator may grant.
var assignableRoles = []string{string(sec.RoleUser), string(sec.RoleModerator), string(sec.RoleAdmin)}

// Handler implements the HTTP layer for user directory management.
type Handler struct {
	accountService *Service
}

// NewHandler constructs a new account [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{accountService: service}
}

// Routes returns a [chi.Router] configured with the user directory endpoints.
//
// Reads need any authenticated caller; writes need the admin role.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/", handler.list)
		r.Get("/{id}", handler.get)
	})

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(sec.RoleAdmin))
		r.Post("/", handler.create)
		r.Patch("/{id}", handler.update)
		r.Delete("/{id}", handler.delete)
		r.Patch("/{id}/toggle-status", handler.toggleStatus)
	})

	return router
}

// # Read Endpoints

/*
GET /api/v1/users.

Description: Lists accounts with search, role and status filters.

Request:
  - page, limit: pagination (limit capped at 100)
  - search: matched against email and names
  - role, is_active: exact filters
  - sort_by: email | first_name | last_name | created_at (default created_at)
  - sort_order: asc | desc (default desc)

Response:
  - 200: []PublicUser with pagination meta
  - 400: ErrValidation: Unknown filter values
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *Handler) list(writer http.ResponseWriter, request *http.Request) {
	query := request.URL.Query()
	params := pagination.FromRequest(request)

	input := ListInput{
		Search:    strings.TrimSpace(query.Get(fieldSearch)),
		Role:      strings.TrimSpace(query.Get(fieldRole)),
		SortBy:    strings.TrimSpace(query.Get(fieldSortBy)),
		SortOrder: strings.ToLower(strings.TrimSpace(query.Get(fieldSortOrder))),
		Page:      params.Page,
		Limit:     params.Limit,
	}

	isActive, err := requestutil.QueryBool(request, fieldIsActive)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	input.IsActive = isActive

	validator := &validate.Validator{}
	validator.MaxLen(fieldSearch, input.Search, maxNameLength)
	if input.Role != "" {
		validator.OneOf(fieldRole, input.Role, assignableRoles...)
	}
	if input.SortBy != "" {
		validator.OneOf(fieldSortBy, input.SortBy, auth.SortKeys...)
	}
	if input.SortOrder != "" {
		validator.OneOf(fieldSortOrder, input.SortOrder, SortOrderAsc, SortOrderDesc)
	}

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	users, meta, err := handler.accountService.List(request.Context(), input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, users, meta)
}

/*
GET /api/v1/users/{id}.

Response:
  - 200: PublicUser
  - 400: ErrValidation: Malformed ID
  - 404: ErrNotFound: User not found
*/
func (handler *Handler) get(writer http.ResponseWriter, request *http.Request) {
	userID, err := pathID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.accountService.Get(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

// # Admin Endpoints

type createRequest struct {
	Email     string   `json:"email"`
	Password  string   `json:"password"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Roles     []string `json:"roles"`
}

/*
POST /api/v1/users.

Description: Creates a verified account with the given roles.

Request:
  - body: createRequest

Response:
  - 201: PublicUser
  - 400: ErrValidation
  - 403: ErrForbidden: Admin role required
  - 409: ErrConflict: Email already registered
*/
func (handler *Handler) create(writer http.ResponseWriter, request *http.Request) {
	var input createRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(auth.FieldEmail, input.Email).
		Email(auth.FieldEmail, input.Email).
		MaxLen(auth.FieldFirstName, input.FirstName, maxNameLength).
		MaxLen(auth.FieldLastName, input.LastName, maxNameLength)
	auth.ValidatePassword(validator, auth.FieldPassword, input.Password)
	if input.Roles != nil {
		validator.EachOneOf(fieldRoles, input.Roles, assignableRoles...)
	}

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.accountService.Create(request.Context(), CreateInput{
		Email:     input.Email,
		Password:  input.Password,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Roles:     input.Roles,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, user)
}

type updateRequest struct {
	FirstName *string  `json:"first_name"`
	LastName  *string  `json:"last_name"`
	Roles     []string `json:"roles"`
	IsActive  *bool    `json:"is_active"`
}

/*
PATCH /api/v1/users/{id}.

Description: Applies a partial update. Disabling an account ends its sessions.

Response:
  - 200: PublicUser
  - 400: ErrValidation
  - 403: ErrForbidden: Admin role required
  - 404: ErrNotFound: User not found
*/
func (handler *Handler) update(writer http.ResponseWriter, request *http.Request) {
	userID, err := pathID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input updateRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	if input.FirstName != nil {
		validator.MaxLen(auth.FieldFirstName, *input.FirstName, maxNameLength)
	}
	if input.LastName != nil {
		validator.MaxLen(auth.FieldLastName, *input.LastName, maxNameLength)
	}
	if input.Roles != nil {
		validator.EachOneOf(fieldRoles, input.Roles, assignableRoles...)
	}

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.accountService.Update(request.Context(), userID, UpdateInput{
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Roles:     input.Roles,
		IsActive:  input.IsActive,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

/*
DELETE /api/v1/users/{id}.

Response:
  - 204: No Content
  - 403: ErrForbidden: Admin role required
  - 404: ErrNotFound: User not found
*/
func (handler *Handler) delete(writer http.ResponseWriter, request *http.Request) {
	userID, err := pathID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.accountService.Delete(request.Context(), userID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

// PATCH /api/v1/users/{id}/toggle-status flips the active flag.
func (handler *Handler) toggleStatus(writer http.ResponseWriter, request *http.Request) {
	userID, err := pathID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.accountService.ToggleStatus(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

// pathID extracts and validates the {id} URL parameter.
func pathID(request *http.Request) (string, error) {
	userID := requestutil.Param(request, fieldID)
	if err := (&validate.Validator{}).UUID(fieldID, userID).Err(); err != nil {
		return "", err
	}
	return userID, nil
}
