package server

import (
	"crypto/tls"
	"encoding/json"
	"evcore/internal"
	"evcore/internal/config"
	"evcore/session"
	"evcore/utility"
	"fmt"
	"io"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

const (
	commandEndpoint      = "/api/command"
	transactionsEndpoint = "/api/transactions"
	transactionEndpoint  = "/api/transactions/:id"
)

// TransactionReader is the read side the API exposes: running sessions as
// summaries, any session in full by its id.
type TransactionReader interface {
	ActiveTransactions() []session.Summary
	Transaction(transactionId int) (*session.Details, error)
}

type Api struct {
	conf           *config.Config
	httpServer     *http.Server
	commandHandler func(w http.ResponseWriter, command CentralSystemCommand) error
	transactions   TransactionReader
	logger         internal.LogHandler
}

func NewServerApi(conf *config.Config, logger internal.LogHandler) *Api {
	server := Api{
		conf:   conf,
		logger: logger,
	}
	router := httprouter.New()
	router.POST(commandEndpoint, server.handleCommand)
	router.GET(transactionsEndpoint, server.handleTransactionList)
	router.GET(transactionEndpoint, server.handleTransaction)
	server.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%s", conf.Api.BindIP, conf.Api.Port),
		Handler: router,
	}
	return &server
}

func (s *Api) Start() error {
	if s.conf.Api.TLS {
		cert, err := tls.LoadX509KeyPair(s.conf.Api.CertFile, s.conf.Api.KeyFile)
		if err != nil {
			return fmt.Errorf("api: failed to load certificate: %v", err)
		}
		s.httpServer.TLSConfig = &tls.Config{
			MinVersion:   tls.VersionTLS12,
			Certificates: []tls.Certificate{cert},
		}
		return s.httpServer.ListenAndServeTLS("", "")
	}
	return s.httpServer.ListenAndServe()
}

func (s *Api) SetCommandHandler(handler func(w http.ResponseWriter, command CentralSystemCommand) error) {
	s.commandHandler = handler
}

func (s *Api) SetTransactionReader(transactions TransactionReader) {
	s.transactions = transactions
}

func (s *Api) handleCommand(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.logger.Warn(fmt.Sprintf("api: error reading body from %s: %s", r.RemoteAddr, err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	var cmd CentralSystemCommand
	err = json.Unmarshal(body, &cmd)
	if err != nil {
		s.logger.Warn(fmt.Sprintf("api: error parsing command from %s: %s", r.RemoteAddr, err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	err = s.commandHandler(w, cmd)
	if err != nil {
		s.logger.Warn(fmt.Sprintf("api: error sending command %s to %s: %s", cmd.FeatureName, cmd.ChargePointId, err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
}

func (s *Api) handleTransactionList(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if s.transactions == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	s.writeJson(w, s.transactions.ActiveTransactions())
}

func (s *Api) handleTransaction(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	if s.transactions == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	id := utility.ToInt(params.ByName("id"))
	details, err := s.transactions.Transaction(id)
	if err != nil {
		s.logger.Warn(fmt.Sprintf("api: transaction request from %s: %s", r.RemoteAddr, err))
		w.WriteHeader(http.StatusNotFound)
		return
	}
	s.writeJson(w, details)
}

func (s *Api) writeJson(w http.ResponseWriter, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("api: encoding response", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Add("Content-Type", "application/json; charset=utf-8")
	_, err = w.Write(body)
	if err != nil {
		s.logger.Error("api: sending response", err)
	}
}
