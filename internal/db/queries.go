package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GetOrCreateUser returns an existing user by email or creates a new one.
func (db *DB) GetOrCreateUser(email, name string) (*User, error) {
	user, err := db.GetUserByEmail(email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	user = &User{
		ID:        uuid.New().String(),
		Email:     email,
		Name:      name,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	query := `INSERT INTO users (id, email, name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`
	_, err = db.conn.Exec(query, user.ID, user.Email, user.Name, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// GetUserByEmail returns a user by their email address.
func (db *DB) GetUserByEmail(email string) (*User, error) {
	query := `SELECT id, email, name, created_at, updated_at FROM users WHERE email = ?`
	row := db.conn.QueryRow(query, email)

	user := &User{}
	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return user, nil
}

// GetUserByID returns a user by their ID.
func (db *DB) GetUserByID(id string) (*User, error) {
	query := `SELECT id, email, name, created_at, updated_at FROM users WHERE id = ?`
	row := db.conn.QueryRow(query, id)

	user := &User{}
	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}

	return user, nil
}

// CreateApplication creates a new job application.
func (db *DB) CreateApplication(app *Application) error {
	if app.ID == "" {
		app.ID = uuid.New().String()
	}
	app.CreatedAt = time.Now().UTC()
	app.UpdatedAt = time.Now().UTC()

	if app.Status == "" {
		app.Status = StatusApplied
	}
	if app.Priority == "" {
		app.Priority = PriorityMedium
	}
	if app.SalaryCurrency == "" {
		app.SalaryCurrency = "USD"
	}

	query := `INSERT INTO applications (
		id, user_id, company_name, job_title, description, status, priority,
		application_date, deadline, salary_min, salary_max, salary_currency,
		job_url, location, notes, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := db.conn.Exec(query,
		app.ID, app.UserID, app.CompanyName, app.JobTitle, app.Description,
		app.Status, app.Priority, app.ApplicationDate, app.Deadline,
		app.SalaryMin, app.SalaryMax, app.SalaryCurrency,
		app.JobURL, app.Location, app.Notes, app.CreatedAt, app.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	return nil
}

// GetApplicationByID returns an application by its ID.
func (db *DB) GetApplicationByID(id string) (*Application, error) {
	query := applicationSelect + ` WHERE id = ?`
	row := db.conn.QueryRow(query, id)
	return scanApplication(row.Scan)
}

// GetApplicationsByUserID returns all applications for a user.
func (db *DB) GetApplicationsByUserID(userID string) ([]*Application, error) {
	query := applicationSelect + ` WHERE user_id = ? ORDER BY application_date DESC`

	rows, err := db.conn.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query applications: %w", err)
	}
	defer rows.Close()

	var apps []*Application
	for rows.Next() {
		app, err := scanApplication(rows.Scan)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating applications: %w", err)
	}

	return apps, nil
}

// UpdateApplication updates an existing application.
func (db *DB) UpdateApplication(app *Application) error {
	app.UpdatedAt = time.Now().UTC()

	query := `UPDATE applications SET
		company_name = ?, job_title = ?, description = ?, status = ?, priority = ?,
		application_date = ?, deadline = ?, salary_min = ?, salary_max = ?,
		salary_currency = ?, job_url = ?, location = ?, notes = ?, updated_at = ?
		WHERE id = ?`

	result, err := db.conn.Exec(query,
		app.CompanyName, app.JobTitle, app.Description, app.Status, app.Priority,
		app.ApplicationDate, app.Deadline, app.SalaryMin, app.SalaryMax,
		app.SalaryCurrency, app.JobURL, app.Location, app.Notes, app.UpdatedAt, app.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update application: %w", err)
	}

	return requireRowsAffected(result)
}

// DeleteApplication deletes an application by its ID.
func (db *DB) DeleteApplication(id string) error {
	result, err := db.conn.Exec(`DELETE FROM applications WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete application: %w", err)
	}
	return requireRowsAffected(result)
}

// CreateInterview creates a new interview.
func (db *DB) CreateInterview(iv *Interview) error {
	if iv.ID == "" {
		iv.ID = uuid.New().String()
	}
	iv.CreatedAt = time.Now().UTC()
	iv.UpdatedAt = time.Now().UTC()

	if iv.Status == "" {
		iv.Status = "scheduled"
	}
	if iv.DurationMinutes == 0 {
		iv.DurationMinutes = 60
	}

	query := `INSERT INTO interviews (
		id, user_id, application_id, interview_type, scheduled_at, duration_minutes,
		location, meeting_link, status, outcome, notes, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := db.conn.Exec(query,
		iv.ID, iv.UserID, iv.ApplicationID, iv.InterviewType, iv.ScheduledAt,
		iv.DurationMinutes, iv.Location, iv.MeetingLink, iv.Status, iv.Outcome,
		iv.Notes, iv.CreatedAt, iv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create interview: %w", err)
	}

	return nil
}

// GetInterviewByID returns an interview by its ID.
func (db *DB) GetInterviewByID(id string) (*Interview, error) {
	query := interviewSelect + ` WHERE id = ?`
	row := db.conn.QueryRow(query, id)
	return scanInterview(row.Scan)
}

// GetInterviewsByUserID returns all interviews for a user.
func (db *DB) GetInterviewsByUserID(userID string) ([]*Interview, error) {
	query := interviewSelect + ` WHERE user_id = ? ORDER BY scheduled_at`

	rows, err := db.conn.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query interviews: %w", err)
	}
	defer rows.Close()

	var interviews []*Interview
	for rows.Next() {
		iv, err := scanInterview(rows.Scan)
		if err != nil {
			return nil, err
		}
		interviews = append(interviews, iv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating interviews: %w", err)
	}

	return interviews, nil
}

// UpdateInterview updates an existing interview.
func (db *DB) UpdateInterview(iv *Interview) error {
	iv.UpdatedAt = time.Now().UTC()

	query := `UPDATE interviews SET
		interview_type = ?, scheduled_at = ?, duration_minutes = ?, location = ?,
		meeting_link = ?, status = ?, outcome = ?, notes = ?, updated_at = ?
		WHERE id = ?`

	result, err := db.conn.Exec(query,
		iv.InterviewType, iv.ScheduledAt, iv.DurationMinutes, iv.Location,
		iv.MeetingLink, iv.Status, iv.Outcome, iv.Notes, iv.UpdatedAt, iv.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update interview: %w", err)
	}

	return requireRowsAffected(result)
}

// DeleteInterview deletes an interview by its ID.
func (db *DB) DeleteInterview(id string) error {
	result, err := db.conn.Exec(`DELETE FROM interviews WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete interview: %w", err)
	}
	return requireRowsAffected(result)
}

// CreateDocument creates a new document metadata record.
func (db *DB) CreateDocument(doc *Document) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	doc.CreatedAt = time.Now().UTC()

	if doc.Type == "" {
		doc.Type = DocumentOther
	}

	query := `INSERT INTO documents (
		id, user_id, application_id, name, type, file_path, file_size, mime_type,
		is_template, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := db.conn.Exec(query,
		doc.ID, doc.UserID, doc.ApplicationID, doc.Name, doc.Type, doc.FilePath,
		doc.FileSize, doc.MimeType, doc.IsTemplate, doc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}

	return nil
}

// GetDocumentsByUserID returns all document records for a user.
func (db *DB) GetDocumentsByUserID(userID string) ([]*Document, error) {
	query := `SELECT id, user_id, application_id, name, type, file_path, file_size,
		mime_type, is_template, created_at
		FROM documents WHERE user_id = ? ORDER BY created_at DESC`

	rows, err := db.conn.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc := &Document{}
		var appID, mimeType sql.NullString
		var fileSize sql.NullInt64
		err := rows.Scan(&doc.ID, &doc.UserID, &appID, &doc.Name, &doc.Type,
			&doc.FilePath, &fileSize, &mimeType, &doc.IsTemplate, &doc.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		if appID.Valid {
			doc.ApplicationID = &appID.String
		}
		if fileSize.Valid {
			doc.FileSize = &fileSize.Int64
		}
		doc.MimeType = mimeType.String
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}

	return docs, nil
}

// DeleteDocument deletes a document record by its ID.
func (db *DB) DeleteDocument(id string) error {
	result, err := db.conn.Exec(`DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return requireRowsAffected(result)
}

// CreateCalendarEvent creates a new custom calendar event.
func (db *DB) CreateCalendarEvent(ev *CalendarEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	ev.CreatedAt = time.Now().UTC()
	ev.UpdatedAt = time.Now().UTC()

	if ev.EventType == "" {
		ev.EventType = "custom"
	}

	query := `INSERT INTO calendar_events (
		id, user_id, application_id, title, description, start_time, end_time,
		event_type, all_day, location, notes, color, sync_with_google,
		last_google_sync, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := db.conn.Exec(query,
		ev.ID, ev.UserID, ev.ApplicationID, ev.Title, ev.Description,
		ev.StartTime, ev.EndTime, ev.EventType, ev.AllDay, ev.Location,
		ev.Notes, ev.Color, ev.SyncWithGoogle, ev.LastGoogleSync,
		ev.CreatedAt, ev.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create calendar event: %w", err)
	}

	return nil
}

// GetCalendarEventByID returns a custom calendar event by its ID.
func (db *DB) GetCalendarEventByID(id string) (*CalendarEvent, error) {
	query := calendarEventSelect + ` WHERE id = ?`
	row := db.conn.QueryRow(query, id)
	return scanCalendarEvent(row.Scan)
}

// GetCalendarEventsByUserID returns all custom calendar events for a user.
func (db *DB) GetCalendarEventsByUserID(userID string) ([]*CalendarEvent, error) {
	query := calendarEventSelect + ` WHERE user_id = ? ORDER BY start_time`
	return db.queryCalendarEvents(query, userID)
}

// GetSyncableCalendarEvents returns the custom events flagged for Google sync.
func (db *DB) GetSyncableCalendarEvents(userID string) ([]*CalendarEvent, error) {
	query := calendarEventSelect + ` WHERE user_id = ? AND sync_with_google = 1 ORDER BY start_time`
	return db.queryCalendarEvents(query, userID)
}

func (db *DB) queryCalendarEvents(query string, args ...any) ([]*CalendarEvent, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query calendar events: %w", err)
	}
	defer rows.Close()

	var events []*CalendarEvent
	for rows.Next() {
		ev, err := scanCalendarEvent(rows.Scan)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating calendar events: %w", err)
	}

	return events, nil
}

// UpdateCalendarEvent updates an existing custom calendar event.
func (db *DB) UpdateCalendarEvent(ev *CalendarEvent) error {
	ev.UpdatedAt = time.Now().UTC()

	query := `UPDATE calendar_events SET
		title = ?, description = ?, start_time = ?, end_time = ?, event_type = ?,
		all_day = ?, location = ?, notes = ?, color = ?, sync_with_google = ?,
		last_google_sync = ?, updated_at = ?
		WHERE id = ?`

	result, err := db.conn.Exec(query,
		ev.Title, ev.Description, ev.StartTime, ev.EndTime, ev.EventType,
		ev.AllDay, ev.Location, ev.Notes, ev.Color, ev.SyncWithGoogle,
		ev.LastGoogleSync, ev.UpdatedAt, ev.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update calendar event: %w", err)
	}

	return requireRowsAffected(result)
}

// DeleteCalendarEvent deletes a custom calendar event by its ID.
func (db *DB) DeleteCalendarEvent(id string) error {
	result, err := db.conn.Exec(`DELETE FROM calendar_events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete calendar event: %w", err)
	}
	return requireRowsAffected(result)
}

const applicationSelect = `SELECT id, user_id, company_name, job_title, description,
	status, priority, application_date, deadline, salary_min, salary_max,
	salary_currency, job_url, location, notes, created_at, updated_at
	FROM applications`

const interviewSelect = `SELECT id, user_id, application_id, interview_type,
	scheduled_at, duration_minutes, location, meeting_link, status, outcome,
	notes, created_at, updated_at
	FROM interviews`

const calendarEventSelect = `SELECT id, user_id, application_id, title, description,
	start_time, end_time, event_type, all_day, location, notes, color,
	sync_with_google, last_google_sync, created_at, updated_at
	FROM calendar_events`

// scanApplication scans a row into an Application using the given scan function.
func scanApplication(scan func(dest ...any) error) (*Application, error) {
	app := &Application{}
	var description, jobURL, location, notes sql.NullString
	var deadline sql.NullTime
	var salaryMin, salaryMax sql.NullInt64

	err := scan(
		&app.ID, &app.UserID, &app.CompanyName, &app.JobTitle, &description,
		&app.Status, &app.Priority, &app.ApplicationDate, &deadline,
		&salaryMin, &salaryMax, &app.SalaryCurrency,
		&jobURL, &location, &notes, &app.CreatedAt, &app.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan application: %w", err)
	}

	app.Description = description.String
	app.JobURL = jobURL.String
	app.Location = location.String
	app.Notes = notes.String
	if deadline.Valid {
		app.Deadline = &deadline.Time
	}
	if salaryMin.Valid {
		v := int(salaryMin.Int64)
		app.SalaryMin = &v
	}
	if salaryMax.Valid {
		v := int(salaryMax.Int64)
		app.SalaryMax = &v
	}

	return app, nil
}

// scanInterview scans a row into an Interview using the given scan function.
func scanInterview(scan func(dest ...any) error) (*Interview, error) {
	iv := &Interview{}
	var location, meetingLink, outcome, notes sql.NullString

	err := scan(
		&iv.ID, &iv.UserID, &iv.ApplicationID, &iv.InterviewType,
		&iv.ScheduledAt, &iv.DurationMinutes, &location, &meetingLink,
		&iv.Status, &outcome, &notes, &iv.CreatedAt, &iv.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan interview: %w", err)
	}

	iv.Location = location.String
	iv.MeetingLink = meetingLink.String
	iv.Outcome = outcome.String
	iv.Notes = notes.String

	return iv, nil
}

// scanCalendarEvent scans a row into a CalendarEvent using the given scan function.
func scanCalendarEvent(scan func(dest ...any) error) (*CalendarEvent, error) {
	ev := &CalendarEvent{}
	var appID, description, location, notes, color sql.NullString
	var lastSync sql.NullTime

	err := scan(
		&ev.ID, &ev.UserID, &appID, &ev.Title, &description,
		&ev.StartTime, &ev.EndTime, &ev.EventType, &ev.AllDay, &location,
		&notes, &color, &ev.SyncWithGoogle, &lastSync,
		&ev.CreatedAt, &ev.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan calendar event: %w", err)
	}

	if appID.Valid {
		ev.ApplicationID = &appID.String
	}
	ev.Description = description.String
	ev.Location = location.String
	ev.Notes = notes.String
	ev.Color = color.String
	if lastSync.Valid {
		ev.LastGoogleSync = &lastSync.Time
	}

	return ev, nil
}

// requireRowsAffected converts a zero-row result into ErrNotFound.
func requireRowsAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
