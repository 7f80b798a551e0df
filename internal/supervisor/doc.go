// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

/*
Package supervisor runs the recommender's long-lived services under a
suture v4 supervision tree.

Crashed services are restarted with suture's failure decay and backoff.
Services are grouped into layers (see SupervisorTree) so that restarts in
one layer do not count against another. Supervisor events are logged
through sutureslog, backed by the zerolog logger:

	logger := slog.New(logging.NewSlogHandler(logging.Logger()))
	tree, err := supervisor.NewSupervisorTree(logger, supervisor.TreeConfigFrom(&cfg.Supervisor))
	if err != nil {
	    return err
	}
	tree.AddIngestService(productConsumer)
	tree.AddIngestService(interactionConsumer)
	tree.AddModelService(services.NewTrainerService(engine, trainerCfg, logger))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	return tree.Serve(ctx)

Every service implements suture.Service:

	Serve(ctx context.Context) error

and returns once ctx is cancelled. Returning any other error triggers a
restart. Implementing fmt.Stringer gives the service a readable name in
supervisor logs.
*/
package supervisor
