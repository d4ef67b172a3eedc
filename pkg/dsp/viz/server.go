package viz

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type ImageContainer struct {
	name string
	data []byte
}

type Producer interface {
	Name() string
	GetImage() (*ImageContainer, error)
	AddPlotOption(opt PlotOptions)
}

// Server renders the registered producers of recently viewed buckets every
// update interval and serves them over HTTP. A bucket groups the plots of one
// channel chain.
type Server struct {
	images          map[string]map[string]*ImageContainer
	mu              sync.RWMutex
	srv             *http.Server
	producerBuckets map[string]map[string]Producer
	updateInterval  time.Duration
	enabled         bool
	lastViewed      map[string]time.Time
	logger          zerolog.Logger
}

func NewServer(port int, updateInterval time.Duration) *Server {
	if updateInterval <= 0 {
		updateInterval = 500 * time.Millisecond
	}
	return &Server{
		images:          make(map[string]map[string]*ImageContainer),
		producerBuckets: make(map[string]map[string]Producer),
		lastViewed:      make(map[string]time.Time),
		srv:             &http.Server{Addr: fmt.Sprintf(":%d", port)},
		updateInterval:  updateInterval,
		enabled:         true,
		logger:          log.Logger,
	}
}

func (s *Server) SetLogger(logger zerolog.Logger) {
	s.logger = logger
}

func (s *Server) Enable(enable bool) {
	s.mu.Lock()
	s.enabled = enable
	s.mu.Unlock()
}

func (s *Server) SetUpdateInterval(interval time.Duration) {
	s.mu.Lock()
	s.updateInterval = interval
	s.mu.Unlock()
}

func (s *Server) Register(key string, p Producer) {
	s.mu.Lock()
	bucket, ok := s.producerBuckets[key]
	if !ok {
		bucket = make(map[string]Producer)
		s.producerBuckets[key] = bucket
	}
	bucket[p.Name()] = p
	s.mu.Unlock()
}

func (s *Server) Buckets() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.producerBuckets))
	for key := range s.producerBuckets {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Render refreshes the images of every bucket viewed within the last second,
// or of all buckets when force is set.
func (s *Server) Render(force bool) {
	s.mu.RLock()
	if !s.enabled {
		s.mu.RUnlock()
		return
	}
	var producers []Producer
	var owners []string
	for bucketName, bucket := range s.producerBuckets {
		if !force && time.Since(s.lastViewed[bucketName]) >= time.Second {
			continue
		}
		for _, p := range bucket {
			producers = append(producers, p)
			owners = append(owners, bucketName)
		}
	}
	s.mu.RUnlock()

	var wg sync.WaitGroup
	for i := range producers {
		wg.Add(1)
		go func(bucket string, p Producer) {
			defer wg.Done()

			img, err := p.GetImage()
			if err != nil {
				s.logger.Warn().Err(err).Str("plot", p.Name()).Msg("failed to render plot")
				return
			}
			if img == nil {
				return
			}

			s.mu.Lock()
			mb, ok := s.images[bucket]
			if !ok {
				mb = make(map[string]*ImageContainer)
				s.images[bucket] = mb
			}
			mb[img.name] = img
			s.mu.Unlock()
		}(owners[i], producers[i])
	}
	wg.Wait()
}

func (s *Server) Run(ctx context.Context) error {
	go func() {
		for {
			s.mu.RLock()
			interval := s.updateInterval
			s.mu.RUnlock()

			select {
			case <-ctx.Done():
				return
			case <-time.After(interval):
				s.Render(false)
			}
		}
	}()

	s.srv.Handler = s.Handler()

	s.logger.Info().Str("addr", s.srv.Addr).Msg("starting viz server")
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) touch(bucket string) {
	s.mu.Lock()
	s.lastViewed[bucket] = time.Now()
	s.mu.Unlock()
}

func (s *Server) Handler() http.Handler {
	handler := httprouter.New()

	handler.GET("/", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		keys := s.Buckets()
		if len(keys) == 0 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Location", "/view/"+url.PathEscape(keys[0]))
		w.WriteHeader(http.StatusFound)
	})

	handler.GET("/view/:bucket", func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		bucket := params.ByName("bucket")

		s.mu.RLock()
		itemsForBucket, ok := s.producerBuckets[bucket]
		plotKeys := make([]string, 0, len(itemsForBucket))
		for key := range itemsForBucket {
			plotKeys = append(plotKeys, key)
		}
		interval := s.updateInterval
		s.mu.RUnlock()

		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		sort.Strings(plotKeys)
		s.touch(bucket)

		w.Header().Add("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>aisrx viz</title></head>`)
		fmt.Fprintf(w, `
		<script type="text/javascript">
			var toggleRefresh = true;
			function toggleOn() {
				toggleRefresh = !toggleRefresh;
			}

			function changeBucket() {
				var val = document.getElementById('bucketSelector').value;
				window.location.href = '/view/' + val;
			}
			window.onload = function() {
				for (var i = 0; i < %d; i++) {
					var img = document.getElementById('graph-' + i);
					setInterval(function(image) {
						if (toggleRefresh) {
							image.src = image.src.split("?")[0] + "?" + new Date().getTime();
						}
					}, %d, img);
				}
			}
		</script>`, len(plotKeys), interval.Milliseconds())
		fmt.Fprint(w, `<body style='background-color: black'>`)

		fmt.Fprint(w, `<select id="bucketSelector" onchange="changeBucket()">`)
		for _, bucketName := range s.Buckets() {
			selected := ""
			if bucketName == bucket {
				selected = " selected"
			}
			fmt.Fprintf(w, `<option value="%s"%s>%s</option>`, bucketName, selected, bucketName)
		}
		fmt.Fprint(w, `</select>`)
		fmt.Fprint(w, `<button onclick="toggleOn()">Refresh?</button>`)

		fmt.Fprint(w, `<div style="display: flex; flex-direction: row; flex-wrap: wrap">`)
		for idx, key := range plotKeys {
			fmt.Fprintf(w, `<div><img id="graph-%d" src="/img/%s/%s?%d" /></div>`,
				idx, url.PathEscape(bucket), url.PathEscape(key), time.Now().UnixMicro())
		}
		fmt.Fprint(w, `</div></body></html>`)
	})

	handler.GET("/img/:bucket/:img", func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		bucketName := params.ByName("bucket")
		s.touch(bucketName)

		s.mu.RLock()
		img, ok := s.images[bucketName][params.ByName("img")]
		s.mu.RUnlock()

		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		w.Header().Add("Content-Type", "image/png")
		w.Write(img.data)
	})

	return handler
}
