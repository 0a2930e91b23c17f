package main

import (
	"database/sql"

	"github.com/akinalp/stagecall/repository"
)

// Repositories groups the SQLite repositories shared by services and
// middleware.
type Repositories struct {
	Event  repository.EventRepository
	User   repository.UserRepository
	Room   repository.RoomRepository
	Server repository.ConferencingServerRepository
	Call   repository.CallRepository
}

func initRepositories(conn *sql.DB) *Repositories {
	return &Repositories{
		Event:  repository.NewSQLiteEventRepo(conn),
		User:   repository.NewSQLiteUserRepo(conn),
		Room:   repository.NewSQLiteRoomRepo(conn),
		Server: repository.NewSQLiteConferencingServerRepo(conn),
		Call:   repository.NewSQLiteCallRepo(conn),
	}
}
