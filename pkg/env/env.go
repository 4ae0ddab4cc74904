// Package env provides the common configuration of the commands.
package env

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/denisbrodbeck/machineid"
	"gopkg.in/yaml.v2"

	"github.com/robotalks/rtos.go/pkg/bridge"
	"github.com/robotalks/rtos.go/pkg/bridge/mqtt"
	"github.com/robotalks/rtos.go/pkg/kernel"
	"github.com/robotalks/rtos.go/pkg/kernel/sim"
	"github.com/robotalks/rtos.go/pkg/mq"
	"github.com/robotalks/rtos.go/pkg/storage"
)

// Config provides common options to setup kernels, queues and bridges.
type Config struct {
	// TickFrequency is the kernel tick rate in Hz.
	TickFrequency uint32 `yaml:"tick_frequency"`
	// HeapLimit caps kernel queue storage in bytes, 0 for unlimited.
	HeapLimit int `yaml:"heap_limit"`
	// QueueCapacity is the capacity of queues created without one.
	QueueCapacity int `yaml:"queue_capacity"`
	// SlotSize is the largest envelope encoding a bridged queue accepts.
	SlotSize int `yaml:"slot_size"`
	// QueueName names the bridged queue, it is also the topic base.
	QueueName string `yaml:"queue"`

	// MQTTBrokerURL specifies the MQTT broker to use.
	// e.g. mqtt://host:port/topic-prefix
	MQTTBrokerURL string `yaml:"mqtt_url"`
	// ClientID is the MQTT client id, defaults to an id derived from the
	// machine id.
	ClientID string `yaml:"client_id"`
	// WebsocketURL is the websocket server to dial.
	WebsocketURL string `yaml:"websocket_url"`
	// ListenAddr serves websocket peers when not empty.
	ListenAddr string `yaml:"listen"`

	// StorageRoot is the directory backing the file system.
	StorageRoot string `yaml:"storage_root"`

	// PollInterval bounds waits on an empty queue.
	PollInterval time.Duration `yaml:"poll_interval"`
	// PutTimeout bounds waits on a full queue.
	PutTimeout time.Duration `yaml:"put_timeout"`

	// ConfigFile is a YAML file loaded by Load.
	ConfigFile string `yaml:"-"`
}

var defaultConfig = Config{
	TickFrequency: kernel.DefaultTickFrequency,
	QueueCapacity: 16,
	SlotSize:      256,
	QueueName:     "default",
	MQTTBrokerURL: "mqtt://localhost:1883/rtos/",
	StorageRoot:   ".",
	PollInterval:  bridge.DefaultPollInterval,
	PutTimeout:    bridge.DefaultPutTimeout,
}

func init() {
	if val := os.Getenv("RTOS_CONFIG"); val != "" {
		defaultConfig.ConfigFile = val
	}
	if val, err := strconv.ParseUint(os.Getenv("RTOS_TICK_FREQ"), 10, 32); err == nil {
		defaultConfig.TickFrequency = uint32(val)
	}
	if val, err := strconv.Atoi(os.Getenv("RTOS_HEAP_LIMIT")); err == nil {
		defaultConfig.HeapLimit = val
	}
	if val, err := strconv.Atoi(os.Getenv("RTOS_QUEUE_CAPACITY")); err == nil {
		defaultConfig.QueueCapacity = val
	}
	if val := os.Getenv("RTOS_QUEUE"); val != "" {
		defaultConfig.QueueName = val
	}
	if val := os.Getenv("RTOS_MQTT_URL"); val != "" {
		defaultConfig.MQTTBrokerURL = val
	}
	if val := os.Getenv("RTOS_WEBSOCKET_URL"); val != "" {
		defaultConfig.WebsocketURL = val
	}
	if val := os.Getenv("RTOS_STORAGE_ROOT"); val != "" {
		defaultConfig.StorageRoot = val
	}
	if val := os.Getenv("RTOS_CLIENT_ID"); val != "" {
		defaultConfig.ClientID = val
	} else {
		defaultConfig.ClientID = MachineClientID()
	}
}

// MachineClientID derives a client id from the machine id. It returns an
// empty string when the machine id is unavailable.
func MachineClientID() string {
	id, err := machineid.ProtectedID("rtos.go")
	if err != nil {
		return ""
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return "rtos-" + id
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.ConfigFile, "config", defaultConfig.ConfigFile, "YAML config file")
	flag.Var(uint32Value{&defaultConfig.TickFrequency}, "tick-freq", "Kernel tick frequency in Hz")
	flag.IntVar(&defaultConfig.HeapLimit, "heap-limit", defaultConfig.HeapLimit, "Kernel queue storage limit in bytes, 0 for unlimited")
	flag.IntVar(&defaultConfig.QueueCapacity, "capacity", defaultConfig.QueueCapacity, "Default queue capacity")
	flag.IntVar(&defaultConfig.SlotSize, "slot-size", defaultConfig.SlotSize, "Max encoded message size of bridged queues")
	flag.StringVar(&defaultConfig.QueueName, "queue", defaultConfig.QueueName, "Bridged queue name")
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL")
	flag.StringVar(&defaultConfig.ClientID, "client-id", defaultConfig.ClientID, "MQTT client ID")
	flag.StringVar(&defaultConfig.WebsocketURL, "ws", defaultConfig.WebsocketURL, "Websocket server URL")
	flag.StringVar(&defaultConfig.ListenAddr, "listen", defaultConfig.ListenAddr, "Websocket listen address")
	flag.StringVar(&defaultConfig.StorageRoot, "storage", defaultConfig.StorageRoot, "Storage root directory")
	flag.DurationVar(&defaultConfig.PollInterval, "poll", defaultConfig.PollInterval, "Bridge poll interval")
	flag.DurationVar(&defaultConfig.PutTimeout, "put-timeout", defaultConfig.PutTimeout, "Bridge put timeout")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Load creates a Config with default configurations and applies
// ConfigFile if specified. Settings in the file take precedence.
func Load() (*Config, error) {
	conf := NewConfig()
	if conf.ConfigFile != "" {
		if err := conf.LoadFile(conf.ConfigFile); err != nil {
			return nil, err
		}
	}
	return conf, conf.Validate()
}

// MustLoad is Load and fails on error.
func MustLoad() *Config {
	conf, err := Load()
	if err != nil {
		log.Fatalln(err)
	}
	return conf
}

// LoadFile merges settings from a YAML file.
func (c *Config) LoadFile(fn string) error {
	data, err := os.ReadFile(fn)
	if err != nil {
		return fmt.Errorf("read config %s: %v", fn, err)
	}
	if err = yaml.UnmarshalStrict(data, c); err != nil {
		return fmt.Errorf("parse config %s: %v", fn, err)
	}
	return nil
}

// Validate checks the settings.
func (c *Config) Validate() error {
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("invalid queue capacity %d", c.QueueCapacity)
	}
	if c.SlotSize <= 0 || c.SlotSize > mq.MaxProtoSize {
		return fmt.Errorf("slot size must be in (0, %d]", mq.MaxProtoSize)
	}
	if c.HeapLimit < 0 {
		return fmt.Errorf("invalid heap limit %d", c.HeapLimit)
	}
	if c.QueueName == "" {
		return fmt.Errorf("queue name must be specified")
	}
	return nil
}

// NewKernel creates a simulated kernel.
func (c *Config) NewKernel() *sim.Kernel {
	k := sim.New()
	k.Frequency = c.TickFrequency
	k.HeapLimit = c.HeapLimit
	return k
}

// NewQueue creates an envelope queue of QueueCapacity slots.
func (c *Config) NewQueue(api kernel.MessageQueueAPI) *bridge.Queue {
	return mq.NewWithCodec[*bridge.Envelope](api, c.QueueCapacity, bridge.NewEnvelopeCodec(c.SlotSize))
}

// NewFileSystem creates the file system at StorageRoot.
func (c *Config) NewFileSystem() *storage.DirFS {
	return storage.NewDirFS(c.StorageRoot)
}

// NewPubSub creates an MQTT client for MQTTBrokerURL.
func (c *Config) NewPubSub() (*mqtt.PubSub, error) {
	if c.MQTTBrokerURL == "" {
		return nil, fmt.Errorf("MQTT broker URL must be specified")
	}
	ps, err := mqtt.NewPubSubFromURL(c.MQTTBrokerURL, c.ClientID)
	if err != nil {
		return nil, fmt.Errorf("invalid MQTT broker URL: %v", err)
	}
	return ps, nil
}

type uint32Value struct {
	p *uint32
}

func (v uint32Value) String() string {
	if v.p == nil {
		return "0"
	}
	return strconv.FormatUint(uint64(*v.p), 10)
}

func (v uint32Value) Set(s string) error {
	val, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return err
	}
	*v.p = uint32(val)
	return nil
}
