package adapter

import (
	"fmt"
	"log"

	"GoGalleryCatalog/internal/config"
)

// Dependencies は、アダプタが利用する外部コラボレータです。
type Dependencies struct {
	Fetcher     Fetcher
	Preferences Preferences
	Logger      *log.Logger
}

// adapterRegistry は、アダプタ名とCatalogSource実装のマッピングを保持します。
var adapterRegistry = map[string]func(config.Site, Dependencies) (CatalogSource, error){
	"masonry": func(site config.Site, deps Dependencies) (CatalogSource, error) {
		a, err := NewMasonryAdapter(site, deps)
		if err != nil {
			return nil, err
		}
		return a, nil
	},
}

// GetAdapter は、サイト設定の adapter 名に対応するCatalogSourceの新しいインスタンスを返します。
func GetAdapter(site config.Site, deps Dependencies) (CatalogSource, error) {
	factory, ok := adapterRegistry[site.Adapter]
	if !ok {
		return nil, fmt.Errorf("アダプタ名 '%s' に対応するアダプタが見つかりません (site=%s)", site.Adapter, site.ID)
	}
	return factory(site, deps)
}

// GetAdapters は、全サイト分のCatalogSourceを設定順に生成します。
func GetAdapters(sites []config.Site, deps Dependencies) ([]CatalogSource, error) {
	sources := make([]CatalogSource, 0, len(sites))
	for _, site := range sites {
		src, err := GetAdapter(site, deps)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}
