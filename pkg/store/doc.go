/*
Package store provides template storage backends for the subst engine.

Two backends are included: a SQLite-backed Store for templates managed through
an API (prepared statements over a shared *sql.DB, in the same shape as the
rest of the toolchain's SQLite persistence), and a filesystem Library that
serves a directory of *.tmpl files and can hot-reload its catalog when the
directory changes, enabling template updates post-deployment.

The package does not open database connections itself; the caller supplies a
*sql.DB with whichever SQLite driver the binary was built with.
*/
package store
