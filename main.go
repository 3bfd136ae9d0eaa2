package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/logging"
	"github.com/graylingsocial/grayling/db"
	"github.com/graylingsocial/grayling/federation"
	"github.com/graylingsocial/grayling/feeds"
	"github.com/graylingsocial/grayling/middleware"
	"github.com/graylingsocial/grayling/social"
	"github.com/graylingsocial/grayling/ui/common"
	"github.com/graylingsocial/grayling/util"
	"github.com/graylingsocial/grayling/web"
)

func main() {

	conf, err := util.ReadConf()
	if err != nil {
		log.Fatalln(err)
	}

	fmt.Println("Configuration: ")
	fmt.Println(util.PrettyPrint(conf))

	database := db.GetDB()
	if err := database.CreateSchema(); err != nil {
		log.Fatalln("Could not create the schema:", err)
	}

	resolver := federation.NewResolver(database, federation.NewWebfingerClient())
	codec := federation.NewMagicCodec()
	verifier := federation.NewMagicVerifier(federation.NewResolverKeySource(resolver))
	deliverer := federation.NewDeliverer(codec)

	pinger := federation.NewHubPinger(database)
	pinger.StartWorker()

	service := feeds.NewService(database, conf, pinger)
	graph := social.NewGraph(database, service, conf, deliverer)
	processor := federation.NewProcessor(database, resolver, codec, verifier, graph)
	aggregator := feeds.NewAggregator(database)

	server := web.NewServer(conf, database, resolver, processor, graph, service, aggregator)

	deps := &common.Deps{
		Conf:       conf,
		Store:      database,
		Resolver:   resolver,
		Graph:      graph,
		Service:    service,
		Aggregator: aggregator,
	}

	s, err := wish.NewServer(
		wish.WithAddress(fmt.Sprintf("%s:%d", conf.Conf.Host, conf.Conf.SshPort)),
		wish.WithHostKeyPath(".ssh/hostkey"),
		wish.WithPublicKeyAuth(publicKeyHandler),
		wish.WithMiddleware(
			middleware.MainTui(deps),
			middleware.AuthMiddleware(conf),
			logging.Middleware(), // last middleware executed first
		),
	)
	if err != nil {
		log.Fatalln(err)
	}

	startServing(s, server, conf)

}

func startServing(s *ssh.Server, server *web.Server, conf *util.AppConfig) {
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	log.Printf("Starting SSH server on %s:%d", conf.Conf.Host, conf.Conf.SshPort)
	go func() {
		if err := s.ListenAndServe(); err != nil {
			log.Fatalln(err)
		}
	}()

	go func() {
		if err := server.Router(); err != nil {
			log.Fatalln(err)
		}
	}()

	<-done
	log.Println("Stopping SSH server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer func() { cancel() }()
	if err := s.Shutdown(ctx); err != nil {
		log.Fatalln(err)
	}
}

func publicKeyHandler(ssh.Context, ssh.PublicKey) bool {
	return true
}
