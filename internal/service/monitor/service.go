package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	api "github.com/oshokin/posture-alarm/internal/api/grpc/monitor"
	"github.com/oshokin/posture-alarm/internal/audio"
	"github.com/oshokin/posture-alarm/internal/config"
	"github.com/oshokin/posture-alarm/internal/escalation"
	"github.com/oshokin/posture-alarm/internal/feed"
	"github.com/oshokin/posture-alarm/internal/logger"
	"github.com/oshokin/posture-alarm/internal/notify"
	"github.com/oshokin/posture-alarm/internal/render"
)

// app is one wired monitoring session.
type app struct {
	session    *escalation.Session
	dispatcher *notify.Dispatcher
	grpcServer *grpc.Server
	health     *health.Server
}

// newApp builds the session and its collaborators from settings.
func newApp(ctx context.Context, settings *config.Config, to recipient, output io.Writer) (*app, error) {
	message, err := renderMessage(settings.Notification.MessageTemplate, to.name)
	if err != nil {
		return nil, err
	}

	gateway, err := notify.NewHTTPGateway(settings.Notification.GatewayURL, settings.Timeout)
	if err != nil {
		return nil, fmt.Errorf("create gateway client: %w", err)
	}

	dispatcher := notify.NewDispatcher(gateway, settings.Notification.QueueSize, settings.Timeout)

	player, err := newPlayer(ctx, settings.Audio.Command)
	if err != nil {
		return nil, err
	}

	session := escalation.NewSession(
		escalation.Settings{
			Classes:     len(settings.Labels),
			Debounce:    settings.Escalation.Debounce,
			BlinkPeriod: settings.Escalation.BlinkPeriod,
			Threshold:   settings.Escalation.Threshold,
			Policy:      escalation.Policy(settings.Escalation.Policy),
			Destination: to.destination,
			Message:     message,
		},
		escalation.WithAudio(player),
		escalation.WithNotifier(dispatcher),
		escalation.WithObserver(render.NewStatusLine(output, settings.Labels)),
	)

	grpcServer := grpc.NewServer()
	api.RegisterMonitorServiceServer(grpcServer, api.NewServer(session))

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	return &app{
		session:    session,
		dispatcher: dispatcher,
		grpcServer: grpcServer,
		health:     healthServer,
	}, nil
}

// newPlayer returns the looping command player, or a silent one when no command is set.
//
//nolint:ireturn // Either player satisfies the session's audio port.
func newPlayer(ctx context.Context, command []string) (escalation.Audio, error) {
	if len(command) == 0 {
		logger.Info(ctx, "No audio command configured, the alarm is silent")

		return audio.Silent{}, nil
	}

	player, err := audio.NewLoopPlayer(command)
	if err != nil {
		return nil, fmt.Errorf("create audio player: %w", err)
	}

	return player, nil
}

// serve runs the session, the dispatcher and the gRPC server on lis until ctx
// is done or one of them fails. A non-nil input is pumped as a JSON-lines feed.
func (a *app) serve(ctx context.Context, lis net.Listener, input io.Reader) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.session.Run(gctx)
	})

	g.Go(func() error {
		return a.dispatcher.Run(gctx)
	})

	g.Go(func() error {
		a.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		a.health.SetServingStatus(api.ServiceName, healthpb.HealthCheckResponse_SERVING)

		if err := a.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve gRPC: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info(ctx, "Shutting down gRPC server")
		a.health.Shutdown()
		a.grpcServer.GracefulStop()

		return nil
	})

	if input != nil {
		// Not part of the group: a read on stdin cannot be interrupted.
		go a.pump(gctx, input)
	}

	err := g.Wait()

	sent, failed, dropped := a.dispatcher.Stats()
	logger.InfoKV(ctx, "Monitor stopped", "sent", sent, "failed", failed, "dropped", dropped)

	return err
}

func (a *app) pump(ctx context.Context, input io.Reader) {
	ctx = logger.WithName(ctx, "feed")

	err := feed.Pump(ctx, feed.NewLineSource(input), a.session)
	switch {
	case err == nil:
		logger.Info(ctx, "Stdin feed finished, gRPC pushes are still accepted")
	case errors.Is(err, escalation.ErrSessionClosed):
		logger.Debug(ctx, "Stdin feed stopped with the session")
	default:
		logger.ErrorKV(ctx, "Stdin feed failed", "error", err)
	}
}
