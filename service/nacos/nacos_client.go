package nacos

import (
	"net"
	"strconv"

	"github.com/Infinite-Chess/infinitechess.org-sub008/global/config"
	"github.com/nacos-group/nacos-sdk-go/v2/clients"
	"github.com/nacos-group/nacos-sdk-go/v2/clients/naming_client"
	"github.com/nacos-group/nacos-sdk-go/v2/common/constant"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"
	"github.com/pkg/errors"
)

// NewNamingClient 按配置创建 naming client
func NewNamingClient(nc config.NacosConfig) (naming_client.INamingClient, error) {
	host, portStr, err := net.SplitHostPort(nc.Addr)
	if err != nil {
		return nil, errors.Wrapf(err, "nacos addr %q", nc.Addr)
	}
	port, err := strconv.ParseUint(portStr, 10, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "nacos port %q", portStr)
	}
	client, err := clients.NewNamingClient(vo.NacosClientParam{
		ClientConfig: constant.NewClientConfig(
			constant.WithNamespaceId(nc.NamespaceID),
			constant.WithTimeoutMs(5000),
			constant.WithNotLoadCacheAtStart(true),
			constant.WithLogLevel("warn"),
			constant.WithCacheDir("nacos/cache"),
			constant.WithLogDir("nacos/log"),
		),
		ServerConfigs: []constant.ServerConfig{*constant.NewServerConfig(host, port)},
	})
	if err != nil {
		return nil, errors.Wrap(err, "create nacos naming client")
	}
	return client, nil
}
