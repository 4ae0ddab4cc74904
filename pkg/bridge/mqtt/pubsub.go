// Package mqtt carries packets over MQTT topics.
package mqtt

import (
	"container/list"
	"net/url"
	"strings"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"
)

// Handler is the callback when a message is received.
type Handler func(topic string, payload []byte)

// PubSub wraps MQTT client and dispatches received messages to
// subscriptions by topic.
type PubSub struct {
	Client       paho.Client
	TopicPrefix  string
	OnConnect    ConnectHandler
	OnDisconnect ConnectHandler

	subsLock     sync.RWMutex
	subs         map[string]*list.List
	wildcardSubs map[string]*list.List
}

// ConnectHandler is to handle connect/disconnect events.
type ConnectHandler func(*PubSub)

// Subscription is a subscribed topic.
type Subscription struct {
	Token paho.Token

	pubsub   *PubSub
	elm      *list.Element
	topic    string
	wildcard bool
	handler  Handler
}

// MatchTopic matches topic with pattern.
func MatchTopic(topic, pattern string) bool {
	tokensT, tokensP := strings.Split(topic, "/"), strings.Split(pattern, "/")
	for i, token := range tokensP {
		if token == "#" && i+1 == len(tokensP) {
			return true
		}
		if i >= len(tokensT) {
			return false
		}
		if token != "+" && token != tokensT[i] {
			return false
		}
	}
	return len(tokensP) == len(tokensT)
}

// ClientOptionsFromURL creates ClientOptions from URL.
// The path of the URL is the topic prefix, query parameter client-id sets
// the client id.
func ClientOptionsFromURL(serverURL string) (*paho.ClientOptions, string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, "", err
	}
	var server string
	if u.Scheme == "" || u.Scheme == "mqtt" {
		server = "tcp"
	} else {
		server = u.Scheme
	}
	server += "://" + u.Host

	topicPrefix := strings.TrimPrefix(u.Path, "/")
	if topicPrefix != "" && !strings.HasSuffix(topicPrefix, "/") {
		topicPrefix += "/"
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(server).
		SetAutoReconnect(true).
		SetCleanSession(true)
	if u.User != nil {
		opts.SetUsername(u.User.Username())
		if pwd, ok := u.User.Password(); ok {
			opts.SetPassword(pwd)
		}
	}

	if clientID := u.Query().Get("client-id"); clientID != "" {
		opts.SetClientID(clientID)
	}

	return opts, topicPrefix, nil
}

// NewPubSub creates PubSub.
func NewPubSub(options *paho.ClientOptions, topicPrefix string) *PubSub {
	ps := &PubSub{TopicPrefix: topicPrefix}
	options.SetOnConnectHandler(ps.OnConnectHandler)
	options.SetConnectionLostHandler(ps.ConnectionLostHandler)
	ps.Client = paho.NewClient(options)
	return ps
}

// NewPubSubFromURL creates PubSub from URL. A non-empty clientID overrides
// the one in the URL.
func NewPubSubFromURL(brokerURL, clientID string) (*PubSub, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	if clientID != "" {
		opts.SetClientID(clientID)
	}
	return NewPubSub(opts, topicPrefix), nil
}

// Connect connects the client and waits for the result.
func (ps *PubSub) Connect() error {
	token := ps.Client.Connect()
	token.Wait()
	return token.Error()
}

// Close implements io.Closer.
func (ps *PubSub) Close() error {
	ps.Client.Disconnect(250)
	return nil
}

// Sub subscribes a topic
func (ps *PubSub) Sub(topic string, handler Handler) *Subscription {
	sub, newSub := ps.addSub(topic, handler)
	if newSub {
		if glog.V(2) {
			glog.Infof("SUB %q", ps.TopicPrefix+topic)
		}
		sub.Token = ps.Client.Subscribe(ps.TopicPrefix+topic, 0, ps.dispatch)
	}
	return sub
}

func (ps *PubSub) addSub(topic string, handler Handler) (*Subscription, bool) {
	wildcard := strings.Contains(topic, "+") || strings.HasSuffix(topic, "#")
	var newSub bool
	ps.subsLock.Lock()
	defer ps.subsLock.Unlock()
	if ps.subs == nil {
		ps.subs = make(map[string]*list.List)
	}
	if ps.wildcardSubs == nil {
		ps.wildcardSubs = make(map[string]*list.List)
	}
	subs := ps.subs
	if wildcard {
		subs = ps.wildcardSubs
	}
	lst := subs[topic]
	if lst == nil {
		lst = list.New()
		subs[topic] = lst
		newSub = true
	}
	sub := &Subscription{
		pubsub:   ps,
		topic:    topic,
		wildcard: wildcard,
		handler:  handler,
	}
	sub.elm = lst.PushBack(sub)
	return sub, newSub
}

// Pub publishes to a topic.
func (ps *PubSub) Pub(topic string, payload []byte) paho.Token {
	return ps.PubWith(topic, payload, 0, false)
}

// PubWith publishes with QoS and retain settings.
func (ps *PubSub) PubWith(topic string, payload []byte, qos byte, retain bool) paho.Token {
	return ps.Client.Publish(ps.TopicPrefix+topic, qos, retain, payload)
}

// Resubscribe is used in OnConnect handler to subscribe all existing topics.
func (ps *PubSub) Resubscribe() paho.Token {
	filters := make(map[string]byte)
	ps.subsLock.RLock()
	for topic := range ps.subs {
		filters[ps.TopicPrefix+topic] = 0
	}
	for topic := range ps.wildcardSubs {
		filters[ps.TopicPrefix+topic] = 0
	}
	ps.subsLock.RUnlock()
	if len(filters) > 0 {
		if glog.V(2) {
			for key := range filters {
				glog.Infof("SUB %q", key)
			}
		}
		return ps.Client.SubscribeMultiple(filters, ps.dispatch)
	}
	return &paho.DummyToken{}
}

// OnConnectHandler is the default implementation of paho.OnConnectHandler.
func (ps *PubSub) OnConnectHandler(paho.Client) {
	glog.Info("mqtt connected")
	ps.Resubscribe()
	if h := ps.OnConnect; h != nil {
		h(ps)
	}
}

// ConnectionLostHandler is the default implementation of paho.ConnectLostHandler.
func (ps *PubSub) ConnectionLostHandler(c paho.Client, err error) {
	glog.Warningf("mqtt connection lost: %v", err)
	if h := ps.OnDisconnect; h != nil {
		h(ps)
	}
}

func (ps *PubSub) dispatch(c paho.Client, msg paho.Message) {
	ps.deliver(msg.Topic(), msg.Payload())
}

func (ps *PubSub) deliver(topic string, payload []byte) {
	if !strings.HasPrefix(topic, ps.TopicPrefix) {
		return
	}
	glog.V(2).Infof("RCV %q", topic)
	topic = topic[len(ps.TopicPrefix):]
	var handlers []Handler
	ps.subsLock.RLock()
	if lst := ps.subs[topic]; lst != nil {
		handlers = make([]Handler, 0, lst.Len())
		for elm := lst.Front(); elm != nil; elm = elm.Next() {
			handlers = append(handlers, elm.Value.(*Subscription).handler)
		}
	}
	for key, lst := range ps.wildcardSubs {
		if MatchTopic(topic, key) {
			for elm := lst.Front(); elm != nil; elm = elm.Next() {
				handlers = append(handlers, elm.Value.(*Subscription).handler)
			}
		}
	}
	ps.subsLock.RUnlock()
	for _, h := range handlers {
		h(topic, payload)
	}
}

// Close unsubscribes a handler.
func (s *Subscription) Close() error {
	if !s.remove() {
		return nil
	}
	glog.V(2).Infof("UNSUB %q", s.topic)
	token := s.pubsub.Client.Unsubscribe(s.pubsub.TopicPrefix + s.topic)
	token.Wait()
	return token.Error()
}

// remove detaches the subscription and reports whether it was the last
// one of its topic.
func (s *Subscription) remove() bool {
	s.pubsub.subsLock.Lock()
	defer s.pubsub.subsLock.Unlock()
	subs := s.pubsub.subs
	if s.wildcard {
		subs = s.pubsub.wildcardSubs
	}
	lst := subs[s.topic]
	if lst == nil || s.elm == nil {
		return false
	}
	lst.Remove(s.elm)
	s.elm = nil
	if lst.Len() > 0 {
		return false
	}
	delete(subs, s.topic)
	return true
}
