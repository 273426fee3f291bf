package nacos

import (
	"sync"

	"github.com/Infinite-Chess/infinitechess.org-sub008/logger"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// namingClient 只用到注册/注销，INamingClient 满足它
type namingClient interface {
	RegisterInstance(param vo.RegisterInstanceParam) (bool, error)
	DeregisterInstance(param vo.DeregisterInstanceParam) (bool, error)
}

// Registry 把当前网关节点注册为临时实例，负载均衡据此发现 /ws 入口
type Registry struct {
	ServiceName string
	IP          string
	Port        uint64
	Group       string
	Metadata    map[string]string

	mu         sync.Mutex
	registered bool
	client     namingClient
}

func NewRegistry(client namingClient, serviceName, ip string, port uint64, group string) *Registry {
	if group == "" {
		group = "DEFAULT_GROUP"
	}
	return &Registry{
		ServiceName: serviceName,
		IP:          ip,
		Port:        port,
		Group:       group,
		Metadata:    map[string]string{"protocol": "ws"},
		client:      client,
	}
}

func (r *Registry) Register() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ok, err := r.client.RegisterInstance(vo.RegisterInstanceParam{
		Ip:          r.IP,
		Port:        r.Port,
		ServiceName: r.ServiceName,
		GroupName:   r.Group,
		ClusterName: "DEFAULT",
		Weight:      1,
		Enable:      true,
		Healthy:     true,
		Ephemeral:   true,
		Metadata:    r.Metadata,
	})
	if err != nil {
		return errors.Wrapf(err, "register %s", r.ServiceName)
	}
	if !ok {
		return errors.Errorf("register %s: returned false", r.ServiceName)
	}
	r.registered = true
	logger.Info("[nacos] instance registered",
		zap.String("service", r.ServiceName),
		zap.String("ip", r.IP),
		zap.Uint64("port", r.Port))
	return nil
}

// Deregister 关停时先摘掉实例，不再接新连接；重复调用无副作用
func (r *Registry) Deregister() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.registered {
		return nil
	}
	_, err := r.client.DeregisterInstance(vo.DeregisterInstanceParam{
		Ip:          r.IP,
		Port:        r.Port,
		ServiceName: r.ServiceName,
		GroupName:   r.Group,
		Cluster:     "DEFAULT",
		Ephemeral:   true,
	})
	if err != nil {
		return errors.Wrapf(err, "deregister %s", r.ServiceName)
	}
	r.registered = false
	return nil
}
