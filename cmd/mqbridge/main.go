package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/rtos.go/pkg/bridge"
	"github.com/robotalks/rtos.go/pkg/bridge/mqtt"
	"github.com/robotalks/rtos.go/pkg/bridge/websocket"
	"github.com/robotalks/rtos.go/pkg/env"
	"github.com/robotalks/rtos.go/pkg/kernel"
	"github.com/robotalks/rtos.go/pkg/kernel/sim"
	"github.com/robotalks/rtos.go/pkg/mq"
	"github.com/robotalks/rtos.go/pkg/task"
)

var (
	host      bool
	echo      bool
	heartbeat time.Duration
)

func init() {
	env.SetupFlags()
	flag.BoolVar(&host, "host", host, "Act as the host side of the queue topics.")
	flag.BoolVar(&echo, "echo", echo, "Send every received envelope back.")
	flag.DurationVar(&heartbeat, "heartbeat", heartbeat, "Interval of heartbeat envelopes, 0 to disable.")
}

type daemon struct {
	conf  *env.Config
	outQ  *bridge.Queue
	inQ   *bridge.Queue
	tasks *task.Group
}

func (d *daemon) connect() (bridge.PacketReadWriter, error) {
	if d.conf.WebsocketURL != "" {
		glog.Infof("dial %s", d.conf.WebsocketURL)
		rw, err := websocket.Dial(d.conf.WebsocketURL, "http://localhost/")
		if err != nil {
			return nil, err
		}
		return rw, nil
	}
	ps, err := d.conf.NewPubSub()
	if err != nil {
		return nil, err
	}
	if err = ps.Connect(); err != nil {
		return nil, fmt.Errorf("connect %s: %v", d.conf.MQTTBrokerURL, err)
	}
	rw := mqtt.NewPacketReadWriter(ps)
	if host {
		rw.ForHost(d.conf.QueueName)
	} else {
		rw.ForDevice(d.conf.QueueName)
	}
	glog.Infof("mqtt %s sub=%q pub=%q", d.conf.MQTTBrokerURL, rw.SubTopic, rw.PubTopic)
	return &pubSubConn{ReadWriter: rw.Subscribe(), pubsub: ps}, nil
}

func (d *daemon) newBridge(rw bridge.PacketReadWriter) *bridge.Bridge {
	b := bridge.New(rw, d.outQ, d.inQ)
	b.Outbound.PollInterval = d.conf.PollInterval
	b.Inbound.PutTimeout = d.conf.PutTimeout
	return b
}

// serve accepts websocket peers, one bridge at a time.
func (d *daemon) serve(ctx context.Context) error {
	var busy = make(chan struct{}, 1)
	server := &http.Server{
		Addr: d.conf.ListenAddr,
		Handler: websocket.Handler(func(rw *websocket.ReadWriter) {
			select {
			case busy <- struct{}{}:
			default:
				glog.Warning("reject peer: bridge busy")
				return
			}
			defer func() { <-busy }()
			glog.Infof("peer connected")
			err := d.newBridge(rw).Run(ctx)
			glog.Infof("peer disconnected: %v", err)
		}),
	}
	glog.Infof("listen %s", d.conf.ListenAddr)
	return task.RunWithContextCloser(ctx, server, server.ListenAndServe)
}

func (d *daemon) echo(ctx context.Context) error {
	for ctx.Err() == nil {
		msg, err := d.inQ.Get(d.conf.PollInterval)
		if kernel.IsTimeout(err) {
			continue
		}
		if err != nil {
			return err
		}
		msg.Seq = 0
		if err = d.outQ.Put(msg, d.conf.PutTimeout); err != nil {
			glog.Warningf("echo drop: %v", err)
		}
	}
	return ctx.Err()
}

func (d *daemon) heartbeat(ctx context.Context) error {
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t := <-ticker.C:
			msg := &bridge.Envelope{Topic: "heartbeat", Payload: []byte(t.UTC().Format(time.RFC3339))}
			if err := d.outQ.Put(msg, mq.NoWait); err != nil {
				glog.Warningf("heartbeat drop: %v", err)
			}
		}
	}
}

func (d *daemon) log(ctx context.Context) error {
	for ctx.Err() == nil {
		msg, err := d.inQ.Get(d.conf.PollInterval)
		if kernel.IsTimeout(err) {
			continue
		}
		if err != nil {
			return err
		}
		glog.Infof("RCV seq=%d topic=%q %q", msg.Seq, msg.Topic, msg.Payload)
	}
	return ctx.Err()
}

// run bridges the queues until stopped. The queues are closed before it
// returns, on every path.
func run(conf *env.Config, k *sim.Kernel) error {
	d := &daemon{
		conf:  conf,
		outQ:  conf.NewQueue(k),
		inQ:   conf.NewQueue(k),
		tasks: task.NewGroup().HandleSignals(),
	}
	defer d.outQ.Close()
	defer d.inQ.Close()

	if conf.ListenAddr != "" {
		d.tasks.Go(task.WithName("server", task.RunFunc(d.serve)))
	} else {
		rw, err := d.connect()
		if err != nil {
			return err
		}
		b := d.newBridge(rw)
		d.tasks.Go(task.WithName("bridge", task.RunFunc(func(ctx context.Context) error {
			defer d.tasks.Stop()
			return b.Run(ctx)
		})))
	}
	if echo {
		d.tasks.Go(task.WithName("echo", task.RunFunc(d.echo)))
	} else {
		d.tasks.Go(task.WithName("log", task.RunFunc(d.log)))
	}
	if heartbeat > 0 {
		d.tasks.Go(task.WithName("heartbeat", task.RunFunc(d.heartbeat)))
	}
	return d.tasks.Wait()
}

func main() {
	flag.Parse()

	conf := env.MustLoad()
	if err := run(conf, conf.NewKernel()); err != nil {
		glog.Errorf("stopped: %v", err)
		glog.Flush()
		log.Fatalln(err)
	}
	glog.Flush()
}

// pubSubConn disconnects the MQTT client when the bridge closes.
type pubSubConn struct {
	*mqtt.ReadWriter
	pubsub *mqtt.PubSub
}

func (c *pubSubConn) Close() error {
	err := c.ReadWriter.Close()
	c.pubsub.Close()
	return err
}
